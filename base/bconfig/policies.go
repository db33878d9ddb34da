package bconfig

import (
	"fmt"

	"github.com/relex/slog-shipper/util"
	"gopkg.in/yaml.v3"
)

// RotationPolicy decides what happens to read progress when a tracked inode is observed under a new path
type RotationPolicy string

const (
	// RotationRestart expires the old record and starts the inode over from offset 0
	RotationRestart RotationPolicy = "restart"
	// RotationResume expires the old record and carries its offset over to the new record
	RotationResume RotationPolicy = "resume"
)

// UnmarshalYAML validates the policy name
func (policy *RotationPolicy) UnmarshalYAML(value *yaml.Node) error {
	switch RotationPolicy(value.Value) {
	case RotationRestart, RotationResume:
		*policy = RotationPolicy(value.Value)
		return nil
	default:
		return util.NewYamlError(value, fmt.Sprintf("unsupported rotation_policy '%s'", value.Value))
	}
}

// TruncationPolicy decides what happens when a file becomes smaller than its recorded offset
type TruncationPolicy string

const (
	// TruncationReset treats the file as truncated in place and reads it again from offset 0
	TruncationReset TruncationPolicy = "reset"
	// TruncationIgnore treats a shrunk file as having nothing new
	TruncationIgnore TruncationPolicy = "ignore"
)

// UnmarshalYAML validates the policy name
func (policy *TruncationPolicy) UnmarshalYAML(value *yaml.Node) error {
	switch TruncationPolicy(value.Value) {
	case TruncationReset, TruncationIgnore:
		*policy = TruncationPolicy(value.Value)
		return nil
	default:
		return util.NewYamlError(value, fmt.Sprintf("unsupported truncation_policy '%s'", value.Value))
	}
}
