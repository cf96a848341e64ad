package match

import (
	"sort"
	"strings"
)

// skillKeywords is a curated vocabulary of technical skills grouped by
// category. Extraction matches against the lowercased text, so every
// entry here is lowercase.
var skillKeywords = map[string][]string{
	"languages": {
		"python", "javascript", "typescript", "java", "c++", "c#", "go", "rust", "php", "ruby",
		"swift", "kotlin", "scala", "r", "matlab", "sql", "html", "css", "bash", "powershell",
	},
	"frameworks": {
		"react", "angular", "vue", "node.js", "express", "django", "flask", "spring", "laravel",
		"rails", "asp.net", "fastapi", "gin", "echo", "fiber", "actix", "rocket", "axum",
	},
	"databases": {
		"postgresql", "mysql", "mongodb", "redis", "elasticsearch", "cassandra", "dynamodb",
		"firebase", "supabase", "cockroachdb", "timescaledb", "influxdb", "neo4j",
	},
	"cloud": {
		"aws", "gcp", "azure", "digitalocean", "heroku", "vercel", "netlify", "cloudflare",
		"linode", "vultr", "scaleway", "ovh", "alibaba cloud",
	},
	"devops": {
		"docker", "kubernetes", "terraform", "ansible", "jenkins", "gitlab", "github actions",
		"circleci", "travis ci", "argo cd", "helm", "prometheus", "grafana", "elk stack",
	},
	"ml": {
		"tensorflow", "pytorch", "scikit-learn", "pandas", "numpy", "matplotlib", "seaborn",
		"jupyter", "hugging face", "openai", "vertex ai", "sagemaker", "mlflow", "kubeflow",
	},
	"methodologies": {
		"agile", "scrum", "kanban", "lean", "devops", "ci/cd", "tdd", "bdd", "pair programming",
		"code review", "git flow", "trunk based development",
	},
}

// ExtractSkills returns the deduplicated set of known skill keywords
// found in text, sorted for deterministic output. Single-word keywords
// match whole tokens only, so "r" or "go" never fire on substrings of
// unrelated words; multi-word keywords match as phrases.
func ExtractSkills(text string) []string {
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)
	tokens := tokenize(lower)

	seen := make(map[string]struct{})
	for _, keywords := range skillKeywords {
		for _, kw := range keywords {
			if strings.ContainsRune(kw, ' ') {
				if strings.Contains(lower, kw) {
					seen[kw] = struct{}{}
				}
			} else if _, ok := tokens[kw]; ok {
				seen[kw] = struct{}{}
			}
		}
	}
	if len(seen) == 0 {
		return nil
	}

	out := make([]string, 0, len(seen))
	for kw := range seen {
		out = append(out, kw)
	}
	sort.Strings(out)
	return out
}

// tokenize splits lowercased text into tokens, keeping the characters
// skill names use (c++, c#, node.js, ci/cd) and trimming stray
// punctuation off the edges.
func tokenize(lower string) map[string]struct{} {
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return false
		case r == '+' || r == '#' || r == '.' || r == '/' || r == '-':
			return false
		}
		return true
	})

	tokens := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, "./-")
		if f != "" {
			tokens[f] = struct{}{}
		}
	}
	return tokens
}

// SkillOverlap scores how much of the job's required skills the
// candidate covers: |intersection| / max(1, |job skills|). A job that
// names no known skills scores zero rather than being treated as a
// perfect match.
func SkillOverlap(resumeSkills, jobSkills []string) (float64, []string) {
	if len(jobSkills) == 0 {
		return 0, nil
	}

	resumeSet := make(map[string]struct{}, len(resumeSkills))
	for _, s := range resumeSkills {
		resumeSet[strings.ToLower(s)] = struct{}{}
	}

	var matched []string
	for _, s := range jobSkills {
		if _, ok := resumeSet[strings.ToLower(s)]; ok {
			matched = append(matched, s)
		}
	}
	return float64(len(matched)) / float64(len(jobSkills)), matched
}
