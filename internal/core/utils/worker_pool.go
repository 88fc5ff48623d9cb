package utils

import "sync"

// RunInPool runs worker over every input using at most maxWorkers
// goroutines. Results and errors come back indexed by input position, so
// callers can match outputs to the work that produced them regardless of
// completion order.
func RunInPool[In any, Out any](worker func(In) (Out, error), inputs []In, maxWorkers int) ([]Out, []error) {
	results := make([]Out, len(inputs))
	errs := make([]error, len(inputs))

	workers := min(len(inputs), maxWorkers)
	if workers <= 0 {
		return results, errs
	}

	queue := make(chan int, len(inputs))
	for i := range inputs {
		queue <- i
	}
	close(queue)

	wg := sync.WaitGroup{}
	wg.Add(workers)

	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()

			for i := range queue {
				results[i], errs[i] = worker(inputs[i])
			}
		}()
	}

	wg.Wait()

	return results, errs
}

// FirstErrors returns up to limit non-nil errors from errs. Useful for
// reporting a digest of batch failures without flooding logs.
func FirstErrors(errs []error, limit int) []error {
	var out []error
	for _, err := range errs {
		if err != nil {
			out = append(out, err)
			if len(out) == limit {
				break
			}
		}
	}
	return out
}
