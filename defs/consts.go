package defs

// Common labels for logging
const (
	LabelComponent = "component"
	LabelName      = "name"
	LabelPart      = "part"

	LabelPath   = "path"
	LabelInode  = "inode"
	LabelRemote = "remote"
)
