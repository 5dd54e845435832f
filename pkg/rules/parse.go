package rules

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/expr"
)

// maxRuleFileSize bounds rule documents. Rule files are hand-authored;
// anything above this is a mistake.
const maxRuleFileSize = 4 * 1024 * 1024 // 4MB

// yamlRuleFile is the intermediate structure for decoding rule documents.
type yamlRuleFile struct {
	Rules []yamlRule `yaml:"rules"`
}

// yamlRule is a single rule as declared in YAML, before compilation.
type yamlRule struct {
	ID          string                   `yaml:"id"`
	Priority    int                      `yaml:"priority"`
	Severity    string                   `yaml:"severity"`
	Description string                   `yaml:"description"`
	Condition   string                   `yaml:"condition"`
	Audit       *bool                    `yaml:"audit"` // pointer to distinguish unset from false
	Actions     []map[string]interface{} `yaml:"actions"`
}

// LoadFile reads and compiles a rule document from disk.
func LoadFile(path string) (*RuleSet, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{Path: path, Cause: err}
	}
	if info.Size() > maxRuleFileSize {
		return nil, &LoadError{Path: path, Cause: fmt.Errorf("file size %d exceeds maximum %d bytes", info.Size(), maxRuleFileSize)}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Cause: err}
	}

	set, err := Parse(data)
	if err != nil {
		return nil, &LoadError{Path: path, Cause: err}
	}
	return set, nil
}

// Parse compiles a rule document from bytes. The load is all-or-nothing:
// any rule that fails to compile fails the whole document.
func Parse(data []byte) (*RuleSet, error) {
	var doc yamlRuleFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("yaml parsing failed: %w", err)
	}

	if len(doc.Rules) == 0 {
		return nil, fmt.Errorf("rule document contains no rules")
	}

	seen := make(map[string]bool, len(doc.Rules))
	compiled := make([]*Rule, 0, len(doc.Rules))
	for i, yr := range doc.Rules {
		rule, err := compileRule(i, yr)
		if err != nil {
			return nil, err
		}
		if seen[rule.ID] {
			return nil, &RuleCompileError{RuleID: rule.ID, Field: "id", Cause: fmt.Errorf("duplicate rule id")}
		}
		seen[rule.ID] = true
		compiled = append(compiled, rule)
	}

	// Priority descending; stable sort preserves declaration order on ties
	// so evaluation order is reproducible for a given source document.
	sort.SliceStable(compiled, func(i, j int) bool {
		return compiled[i].Priority > compiled[j].Priority
	})

	digest := sha256.Sum256(data)
	return &RuleSet{
		rules:    compiled,
		version:  hex.EncodeToString(digest[:])[:12],
		loadedAt: time.Now(),
	}, nil
}

// compileRule validates one declared rule and compiles its condition and
// action payload templates.
func compileRule(index int, yr yamlRule) (*Rule, error) {
	id := yr.ID
	if id == "" {
		return nil, &RuleCompileError{RuleID: fmt.Sprintf("#%d", index), Field: "id", Cause: fmt.Errorf("missing rule id")}
	}

	severity, err := ParseSeverity(yr.Severity)
	if err != nil {
		return nil, &RuleCompileError{RuleID: id, Field: "severity", Cause: err}
	}

	if yr.Condition == "" {
		return nil, &RuleCompileError{RuleID: id, Field: "condition", Cause: fmt.Errorf("missing condition")}
	}
	condition, err := expr.Compile(yr.Condition)
	if err != nil {
		return nil, &RuleCompileError{RuleID: id, Field: "condition", Cause: err}
	}

	actions, err := compileActions(id, yr.Actions)
	if err != nil {
		return nil, err
	}

	audit := true
	if yr.Audit != nil {
		audit = *yr.Audit
	}

	return &Rule{
		ID:            id,
		Priority:      yr.Priority,
		Severity:      severity,
		Description:   yr.Description,
		Condition:     yr.Condition,
		Actions:       actions,
		AuditRequired: audit,
		compiled:      condition,
	}, nil
}

// compileActions compiles the ordered action list of a rule. Two YAML
// shapes are accepted:
//
//	- action: freezeShipment
//	  params: {shipmentId: "{{event.shipment.id}}", reason: GPS_JUMP}
//
//	- freezeShipment: {shipmentId: "{{event.shipment.id}}", reason: GPS_JUMP}
//
// The second, shorthand form matches how operators already write rule files.
func compileActions(ruleID string, raw []map[string]interface{}) ([]*ActionDef, error) {
	actions := make([]*ActionDef, 0, len(raw))
	for i, entry := range raw {
		name, params, err := decodeActionEntry(entry)
		if err != nil {
			return nil, &RuleCompileError{RuleID: ruleID, Field: fmt.Sprintf("actions[%d]", i), Cause: err}
		}

		def := &ActionDef{
			Name:      name,
			Raw:       params,
			templates: make(map[string]*expr.Template),
		}
		for key, value := range params {
			s, ok := value.(string)
			if !ok {
				continue
			}
			tmpl, err := expr.CompileTemplate(s)
			if err != nil {
				return nil, &RuleCompileError{RuleID: ruleID, Field: fmt.Sprintf("actions[%d].%s", i, key), Cause: err}
			}
			def.templates[key] = tmpl
		}
		actions = append(actions, def)
	}
	return actions, nil
}

func decodeActionEntry(entry map[string]interface{}) (string, map[string]interface{}, error) {
	if len(entry) == 0 {
		return "", nil, fmt.Errorf("empty action entry")
	}

	// Explicit form: {action: name, params: {...}}
	if rawName, ok := entry["action"]; ok {
		name, ok := rawName.(string)
		if !ok || name == "" {
			return "", nil, fmt.Errorf("action name must be a non-empty string")
		}
		params := map[string]interface{}{}
		if rawParams, ok := entry["params"]; ok {
			params, ok = toStringKeyMap(rawParams)
			if !ok {
				return "", nil, fmt.Errorf("action %q: params must be a mapping", name)
			}
		}
		return name, params, nil
	}

	// Shorthand form: {name: {...params...}}
	if len(entry) != 1 {
		return "", nil, fmt.Errorf("shorthand action entry must have exactly one key")
	}
	for name, rawParams := range entry {
		params, ok := toStringKeyMap(rawParams)
		if !ok {
			return "", nil, fmt.Errorf("action %q: params must be a mapping", name)
		}
		return name, params, nil
	}
	return "", nil, fmt.Errorf("unreachable")
}

// toStringKeyMap normalizes a decoded YAML mapping to map[string]interface{}.
func toStringKeyMap(v interface{}) (map[string]interface{}, bool) {
	if v == nil {
		return map[string]interface{}{}, true
	}
	switch raw := v.(type) {
	case map[string]interface{}:
		return raw, true
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(raw))
		for k, val := range raw {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = val
		}
		return out, true
	default:
		return nil, false
	}
}
