package controller

import (
	"fmt"
	"strings"

	sdunit "github.com/coreos/go-systemd/v22/unit"
)

// Defaults mirroring the collection tool's own.
const (
	// DefaultUnit is the transient systemd unit name. Kept stable across
	// runs so stop and reset-failed can target units started earlier.
	DefaultUnit = "RETIS"
	// DefaultWorkingDir is the node-side working directory.
	DefaultWorkingDir = "/var/tmp"
	// DefaultOutputFile is the collection output file name.
	DefaultOutputFile = "events.json"
	// DefaultPacketFilter is the default capture filter expression.
	DefaultPacketFilter = "tcp port 8080 or tcp port 8081"
	// DefaultImage is the default collection container image reference.
	DefaultImage = "image-registry.openshift-image-registry.svc:5000/default/retis"

	// ScriptName is the helper script file name, both locally and on the node.
	ScriptName = "retis_in_container.sh"
)

// CollectOptions are the recognized parameters of the start-collection
// command string. The builder is pure: given the same options it always
// produces the same string, with no side effects.
type CollectOptions struct {
	// Image is the collection container image reference, including tag.
	Image string
	// WorkingDir is the node-side directory holding the script and output.
	WorkingDir string
	// OutputFile is the collection output file name.
	OutputFile string
	// PacketFilter is the capture filter expression, empty to omit.
	PacketFilter string
	// AllowSystemChanges permits the tool to modify system state.
	AllowSystemChanges bool
	// OVSTrack enables Open vSwitch tracking.
	OVSTrack bool
	// Stack enables stack trace collection.
	Stack bool
	// ProbeStack enables probe stack collection.
	ProbeStack bool
	// ExtraArgs are appended to the collect invocation verbatim.
	ExtraArgs string
	// Command, when set, overrides the assembled shell command entirely and
	// is used verbatim.
	Command string
}

// DefaultCollectOptions returns the builder defaults used when a flag is not
// supplied.
func DefaultCollectOptions() CollectOptions {
	return CollectOptions{
		Image:              DefaultImage,
		WorkingDir:         DefaultWorkingDir,
		OutputFile:         DefaultOutputFile,
		PacketFilter:       DefaultPacketFilter,
		AllowSystemChanges: true,
		OVSTrack:           true,
		Stack:              true,
		ProbeStack:         true,
	}
}

// collectArgs assembles the arguments passed to the helper script.
func (o CollectOptions) collectArgs() []string {
	args := []string{"collect", "-o", o.OutputFile}

	if o.AllowSystemChanges {
		args = append(args, "--allow-system-changes")
	}
	if o.OVSTrack {
		args = append(args, "--ovs-track")
	}
	if o.Stack {
		args = append(args, "--stack")
	}
	if o.ProbeStack {
		args = append(args, "--probe-stack")
	}
	if o.PacketFilter != "" {
		args = append(args, "--filter-packet", "'"+o.PacketFilter+"'")
	}
	if o.ExtraArgs != "" {
		args = append(args, strings.Fields(o.ExtraArgs)...)
	}

	return args
}

// ShellCommand resolves the node-side shell command that starts collection:
// the raw override verbatim when set, otherwise the helper script invocation
// with the collection image exported in its environment.
func (o CollectOptions) ShellCommand() string {
	if o.Command != "" {
		return o.Command
	}

	script := strings.TrimRight(o.WorkingDir, "/") + "/" + ScriptName
	return fmt.Sprintf("export RETIS_IMAGE='%s'; %s %s",
		o.Image, script, strings.Join(o.collectArgs(), " "))
}

// LaunchCommand wraps the shell command in a transient systemd unit so the
// collection survives the triggering connection closing.
func LaunchCommand(unit, workingDir, shellCommand string) string {
	return fmt.Sprintf("systemd-run --unit=%s --working-directory=%s sh -c \"%s\"",
		unit, workingDir, shellCommand)
}

// NormalizeUnit escapes a unit name into systemd's accepted character set.
func NormalizeUnit(name string) string {
	if name == "" {
		name = DefaultUnit
	}
	return sdunit.UnitNameEscape(name)
}
