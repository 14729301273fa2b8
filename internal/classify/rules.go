package classify

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/tollsimy/rapid/internal/types"
)

// RuleSet is a declarative classifier definition. Each pattern field is
// an RE2 regex applied to the block's raw text; an empty field disables
// that check. TrapCausePattern must capture the cause value in its
// first group.
type RuleSet struct {
	Benchmark string `yaml:"benchmark"`

	PassPattern string `yaml:"pass_pattern"`
	FailPattern string `yaml:"fail_pattern"`

	TrapPattern        string `yaml:"trap_pattern"`
	TrapCausePattern   string `yaml:"trap_cause_pattern"`
	HaltPattern        string `yaml:"halt_pattern"`
	CommFailurePattern string `yaml:"comm_failure_pattern"`
	ExecFailurePattern string `yaml:"exec_failure_pattern"`
	HWResetPattern     string `yaml:"hw_reset_pattern"`
	SDCPattern         string `yaml:"sdc_pattern"`
}

// LoadRuleSets reads one or more rule sets from a YAML file.
func LoadRuleSets(path string) ([]RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file: %w", err)
	}
	var sets []RuleSet
	if err := yaml.Unmarshal(data, &sets); err != nil {
		return nil, fmt.Errorf("parse rule file %s: %w", path, err)
	}
	return sets, nil
}

// RuleClassifier is a RuleSet with its patterns compiled.
type RuleClassifier struct {
	name string

	pass *regexp.Regexp
	fail *regexp.Regexp

	events    map[types.EventTag]*regexp.Regexp
	trapCause *regexp.Regexp
}

// Compile validates the rule set and returns a usable classifier. The
// benchmark name and at least a pass pattern are required; everything
// else is optional.
func (rs RuleSet) Compile() (*RuleClassifier, error) {
	if rs.Benchmark == "" {
		return nil, fmt.Errorf("rule set has no benchmark name")
	}
	if rs.PassPattern == "" {
		return nil, fmt.Errorf("rule set %q has no pass_pattern", rs.Benchmark)
	}

	rc := &RuleClassifier{
		name:   rs.Benchmark,
		events: make(map[types.EventTag]*regexp.Regexp),
	}

	compile := func(field, pattern string) (*regexp.Regexp, error) {
		if pattern == "" {
			return nil, nil
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("rule set %q: %s: %w", rs.Benchmark, field, err)
		}
		return re, nil
	}

	var err error
	if rc.pass, err = compile("pass_pattern", rs.PassPattern); err != nil {
		return nil, err
	}
	if rc.fail, err = compile("fail_pattern", rs.FailPattern); err != nil {
		return nil, err
	}
	if rc.trapCause, err = compile("trap_cause_pattern", rs.TrapCausePattern); err != nil {
		return nil, err
	}
	if rc.trapCause != nil && rc.trapCause.NumSubexp() < 1 {
		return nil, fmt.Errorf("rule set %q: trap_cause_pattern needs a capture group", rs.Benchmark)
	}

	for tag, pattern := range map[types.EventTag]string{
		types.TagTrap:        rs.TrapPattern,
		types.TagHalt:        rs.HaltPattern,
		types.TagCommFailure: rs.CommFailurePattern,
		types.TagExecFailure: rs.ExecFailurePattern,
		types.TagHWReset:     rs.HWResetPattern,
		types.TagSDC:         rs.SDCPattern,
	} {
		re, err := compile(string(tag)+"_pattern", pattern)
		if err != nil {
			return nil, err
		}
		if re != nil {
			rc.events[tag] = re
		}
	}
	return rc, nil
}

func (rc *RuleClassifier) Name() string { return rc.name }

// Classify applies the event patterns and derives the top-level status.
// Blocks matching neither the pass nor the fail pattern are failures if
// a halt or communication failure was seen, outliers otherwise.
func (rc *RuleClassifier) Classify(block types.LogBlock, _ types.FaultRecord) (Outcome, error) {
	text := block.RawText

	var out Outcome
	for tag, re := range rc.events {
		if re.MatchString(text) {
			out.Tags = append(out.Tags, tag)
		}
	}
	out.Tags = types.NormalizeTags(out.Tags)

	if rc.trapCause != nil {
		if m := rc.trapCause.FindStringSubmatch(text); m != nil {
			out.TrapCause = m[1]
		}
	}

	switch {
	case rc.pass.MatchString(text):
		out.Status = types.StatusPassed
	case rc.fail != nil && rc.fail.MatchString(text):
		out.Status = types.StatusFailed
	case rc.hasTag(out.Tags, types.TagHalt) || rc.hasTag(out.Tags, types.TagCommFailure):
		out.Status = types.StatusFailed
	default:
		out.Status = types.StatusOutlier
	}
	return out, nil
}

func (rc *RuleClassifier) hasTag(tags []types.EventTag, want types.EventTag) bool {
	for _, t := range tags {
		if t == want {
			return true
		}
	}
	return false
}
