package casegen

import (
	"strings"
	"text/template"

	"causalgen-backend/internal/core/taxonomy"
)

type seedBatchPromptFields struct {
	NumSeeds      int
	Subdomains    []string
	AvoidEntities []string
}

const seedBatchPrompt = `You possess deep expertise in financial markets and economic reporting. Please generate {{ .NumSeeds }} diverse scenario seeds for causal reasoning questions about markets.

Prefer these subdomains, they are currently under-represented:
[{{ range $i, $v := .Subdomains }}{{ if $i }}, {{ end }}{{ $v }}{{ end }}]
{{ if .AvoidEntities }}
Do NOT reuse any of these entities, they already appear in earlier seeds:
[{{ range $i, $v := .AvoidEntities }}{{ if $i }}, {{ end }}{{ $v }}{{ end }}]
{{ end }}
Each seed describes one concrete market situation: specific named entities (companies, funds, central banks, countries), a timeframe, and an observable event. Seeds must be plausible but fictional; do not restate famous historical episodes verbatim.

Output format:
-  Output a single JSON array and nothing else.
-  Each element is an object with keys: "id", "topic", "subdomain", "entities" (array of strings), "timeframe", "event", "context".
-  Use distinct entities, events, and timeframes across the batch.
-  DO NOT include any bulleting, header/footer, enumeration, prefix/suffix or commentary outside the JSON array.`

var seedBatchPromptTmpl = template.Must(template.New("seedBatchPrompt").Parse(seedBatchPrompt))

type casePromptFields struct {
	LevelName     string
	LevelGuidance string
	AnswerType    string
	AnswerMeaning string
	TrapType      string
	TrapGuidance  string
	Difficulty    string

	Topic     string
	Subdomain string
	Entities  []string
	Timeframe string
	Event     string
	Context   string
}

const casePrompt = `The goal is to create one causal reasoning benchmark question about financial markets.

Reasoning level: {{ .LevelName }}
{{ .LevelGuidance }}

Required ground truth answer: {{ .AnswerType }}
{{ .AnswerMeaning }}

Reasoning pattern to embed: {{ .TrapType }}
{{ .TrapGuidance }}

Target difficulty: {{ .Difficulty }}

Build the question on this scenario seed:
Topic: {{ .Topic }}
Subdomain: {{ .Subdomain }}
Entities: [{{ range $i, $v := .Entities }}{{ if $i }}, {{ end }}{{ $v }}{{ end }}]
Timeframe: {{ .Timeframe }}
Event: {{ .Event }}
Context: {{ .Context }}

Key Requirements:
- The scenario must contain every fact needed to justify the required answer; a careful reader should reach {{ .AnswerType }} from the scenario alone.
- The surface framing should tempt a careless reader toward a different answer.
- Stay inside the seed's entities, timeframe, and event; invent supporting numbers only where the scenario needs them.

Output format:
-  Output a single JSON object and nothing else, with keys: "scenario" (3-6 sentences) and "question" (one sentence).
-  DO NOT include any bulleting, header/footer, markdown fences or commentary outside the JSON object.`

var casePromptTmpl = template.Must(template.New("casePrompt").Parse(casePrompt))

var levelGuidance = map[taxonomy.PearlLevel]string{
	taxonomy.LevelAssociation:    "The question asks whether an observed statistical relationship licenses a causal claim. No intervention occurs; all evidence is observational.",
	taxonomy.LevelIntervention:   "The question is about the effect of a deliberate intervention (a policy change, a trial, a forced action), not a passive observation.",
	taxonomy.LevelCounterfactual: "The question poses a counterfactual: it asks what would have happened under a hypothetical alternative to what actually occurred.",
}

var trapGuidance = map[string]string{
	"WOLF":  "This is a spurious-causation pattern. The scenario presents a correlation that looks causal but is not, for the specific reason named by the code.",
	"SHEEP": "This is a genuine-causation pattern. The scenario presents evidence of the kind named by the code that legitimately supports the causal claim.",
	"AMB":   "This is an ambiguity pattern. The scenario deliberately balances evidence so that the named kind of ambiguity is irreducible.",
	"IVN":   "This is an intervention-failure pattern. The experiment or policy described is compromised in the specific way named by the code.",
	"CF":    "This is a counterfactual-structure pattern. The hypothetical world described has the causal structure named by the code.",
}

func guidanceForTrap(trapType string) string {
	prefix, _, _ := strings.Cut(trapType, ":")
	return trapGuidance[prefix]
}

func meaningForAnswer(level taxonomy.PearlLevel, answerType string) string {
	switch answerType {
	case taxonomy.AnswerYes:
		return "YES means the causal claim is supported; the scenario supplies evidence that rules out the usual non-causal explanations."
	case taxonomy.AnswerNo:
		if level == taxonomy.LevelIntervention {
			return "NO means the intervention did not have the claimed effect; the apparent effect has another cause that the scenario supplies."
		}
		return "NO means the causal claim is not supported; the correlation has a non-causal explanation that the scenario supplies."
	case taxonomy.AnswerAmbiguous:
		return "AMBIGUOUS means the scenario genuinely underdetermines the answer; a careful reader should conclude that the evidence cannot settle it."
	case taxonomy.AnswerValid:
		return "VALID means the counterfactual claim holds: under the hypothetical alternative, the stated outcome would indeed follow."
	case taxonomy.AnswerInvalid:
		return "INVALID means the counterfactual claim fails: the stated outcome would have occurred anyway, or the hypothetical does not produce it."
	case taxonomy.AnswerConditional:
		return "CONDITIONAL means the counterfactual holds only under additional assumptions that the scenario leaves open; the answer depends on how those are resolved."
	}
	return ""
}
