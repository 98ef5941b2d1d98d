package isel

import "golang.org/x/sys/cpu"

// HostSupport reports which targets the running machine can execute
func HostSupport() map[string]bool {
	return map[string]bool{
		"AVX2":   cpu.X86.HasAVX2 && cpu.X86.HasFMA,
		"AVX512": cpu.X86.HasAVX512F,
		"NEON":   cpu.ARM64.HasASIMD,
	}
}

// HostTargets returns the targets supported by the running machine, in
// table order. The result may be empty.
func HostTargets() []Target {
	support := HostSupport()
	var out []Target
	for _, t := range AllTargets() {
		if support[t.Name] {
			out = append(out, t)
		}
	}
	return out
}

// HostTable returns a table of the targets the running machine supports
func HostTable() (*Table, error) {
	return NewTable(HostTargets()...)
}
