package enterprise

import "github.com/enginemcp/broker/pkg/model"

// CreateParams carries the tool-call-supplied overrides for
// session_enterprise_create / pq_create. Nil pointer/nil slice fields mean
// "not specified by the caller" so resolution can fall through to
// session_creation.defaults.
type CreateParams struct {
	HeapSizeGB          *float64
	ProgrammingLanguage model.SessionLanguage
	AutoDeleteTimeout   *int
	Server              string
	Engine              string
	ExtraJVMArgs        []string
	ExtraEnvironmentVars []string
	AdminGroups         []string
	ViewerGroups        []string
	TimeoutSeconds      *float64
	SessionArguments    map[string]any
}

// resolved is the fully resolved, precedence-applied set of creation
// parameters used to build a PQ configuration.
type resolved struct {
	HeapGB            float64
	Language          model.SessionLanguage
	AutoDeleteTimeout  int
	Server            string
	Engine            string
	JVMArgs           []string
	EnvVars           []string
	AdminGroups       []string
	ViewerGroups      []string
	TimeoutSeconds    float64
	SessionArguments  map[string]any
}

// resolveParams applies spec.md §4.5 step 1 precedence:
// tool_parameter > system.session_creation.defaults > engine API default.
// "engine API default" means: leave the field at its Go zero value and let
// the controller's config-builder apply its own default.
func resolveParams(tool CreateParams, sc *model.SessionCreation) resolved {
	var d model.SessionCreationDefaults
	if sc != nil {
		d = sc.Defaults
	}

	r := resolved{
		Server: firstNonEmptyString(tool.Server, d.Server),
		Engine: firstNonEmptyString(tool.Engine, d.Engine),
	}

	if tool.HeapSizeGB != nil {
		r.HeapGB = *tool.HeapSizeGB
	} else if d.HeapSizeGB != nil {
		r.HeapGB = *d.HeapSizeGB
	}

	r.Language = tool.ProgrammingLanguage
	if r.Language == "" {
		r.Language = d.ProgrammingLanguage
	}

	if tool.AutoDeleteTimeout != nil {
		r.AutoDeleteTimeout = *tool.AutoDeleteTimeout
	} else if d.AutoDeleteTimeout != nil {
		r.AutoDeleteTimeout = *d.AutoDeleteTimeout
	}

	r.JVMArgs = firstNonEmptySlice(tool.ExtraJVMArgs, d.ExtraJVMArgs)
	r.EnvVars = firstNonEmptySlice(tool.ExtraEnvironmentVars, d.ExtraEnvironmentVars)
	r.AdminGroups = firstNonEmptySlice(tool.AdminGroups, d.AdminGroups)
	r.ViewerGroups = firstNonEmptySlice(tool.ViewerGroups, d.ViewerGroups)

	if tool.TimeoutSeconds != nil {
		r.TimeoutSeconds = *tool.TimeoutSeconds
	} else if d.TimeoutSeconds != nil {
		r.TimeoutSeconds = *d.TimeoutSeconds
	}

	if len(tool.SessionArguments) > 0 {
		r.SessionArguments = tool.SessionArguments
	} else {
		r.SessionArguments = d.SessionArguments
	}

	return r
}

func firstNonEmptyString(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func firstNonEmptySlice(a, b []string) []string {
	if len(a) > 0 {
		return a
	}
	return b
}
