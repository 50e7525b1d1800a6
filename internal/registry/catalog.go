package registry

import "warden/internal/domain"

// Built-in capabilities. Read-only qualifiers gate the observation
// variants of otherwise mutating action classes.
const (
	CapFileRead        domain.Capability = "file.read"
	CapFileWrite       domain.Capability = "file.write"
	CapShellExec       domain.Capability = "shell.exec"
	CapShellExecRO     domain.Capability = "shell.exec:read-only"
	CapKnowledgeRead   domain.Capability = "knowledge.read"
	CapKnowledgeWrite  domain.Capability = "knowledge.write"
	CapComputerUse     domain.Capability = "computer.use"
	CapComputerObserve domain.Capability = "computer.use:read-only"
)

// Default returns a registry seeded with the built-in action catalog and
// role bundles. The registry is returned unfrozen so startup extensions
// can register additional action types before the caller freezes it.
func Default() *Registry {
	r := New()

	// Driver actions for the desktop execution backend.
	seed := map[string]domain.Capability{
		"computer.screenshot": CapComputerObserve,
		"computer.click":      CapComputerUse,
		"computer.move":       CapComputerUse,
		"computer.scroll":     CapComputerUse,
		"computer.type":       CapComputerUse,
		"computer.key":        CapComputerUse,

		"file.read":   CapFileRead,
		"file.write":  CapFileWrite,
		"file.delete": CapFileWrite,

		"shell.exec": CapShellExec,
		"shell.read": CapShellExecRO,

		"knowledge.read":  CapKnowledgeRead,
		"knowledge.write": CapKnowledgeWrite,
	}
	for actionType, capability := range seed {
		if err := r.RegisterAction(actionType, capability); err != nil {
			panic(err)
		}
	}

	roles := []domain.Role{
		{
			Name:        "viewer",
			Description: "Read-only access to files and the knowledge store",
			Capabilities: []domain.Capability{
				CapFileRead, CapKnowledgeRead,
			},
		},
		{
			Name:        "operator",
			Description: "Viewer plus non-destructive automation",
			Capabilities: []domain.Capability{
				CapFileRead, CapKnowledgeRead,
				CapShellExecRO, CapComputerObserve,
			},
		},
		{
			Name:        "admin",
			Description: "Full access to every governed action class",
			Capabilities: []domain.Capability{
				CapFileRead, CapFileWrite,
				CapShellExec, CapShellExecRO,
				CapKnowledgeRead, CapKnowledgeWrite,
				CapComputerUse, CapComputerObserve,
			},
		},
	}
	for _, role := range roles {
		if err := r.RegisterRole(role); err != nil {
			panic(err)
		}
	}

	return r
}
