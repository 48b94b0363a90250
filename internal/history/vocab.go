package history

import "github.com/LISSConsulting/LISSTech.CondaWatch/internal/triple"

// Namespace is the base IRI bound to the "cw" prefix in the store file.
const (
	NamespacePrefix = "cw"
	Namespace       = "http://conda-watch/#"
)

// EnvironmentKind is the object of the cw:is triple that marks an environment.
const EnvironmentKind = "conda-environment"

// Predicates written by Record.
var (
	PredIs             = triple.Ref("cw:is")
	PredLocation       = triple.Ref("cw:location")
	PredCommand        = triple.Ref("cw:command")
	PredInEnv          = triple.Ref("cw:in_env")
	PredHasHash        = triple.Ref("cw:has_hash")
	PredSameAsPrevious = triple.Ref("cw:same_as_previous")
	PredHasPackage     = triple.Ref("cw:has_package")
	PredVersioned      = triple.Ref("cw:versioned")
)
