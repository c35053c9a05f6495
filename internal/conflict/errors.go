package conflict

import "fmt"

// RecordNotFoundError reports a comparison form id present in neither plugin.
type RecordNotFoundError struct {
	FormID  string
	PluginA string
	PluginB string
}

func (e *RecordNotFoundError) Error() string {
	return fmt.Sprintf("conflict: record %s not found in %s or %s", e.FormID, e.PluginA, e.PluginB)
}

// UnsupportedIdentifierError reports a comparison identifier that is not a
// hex form id.
type UnsupportedIdentifierError struct {
	Identifier string
	Reason     string
}

func (e *UnsupportedIdentifierError) Error() string {
	return fmt.Sprintf("conflict: unsupported record identifier %q: %s", e.Identifier, e.Reason)
}

// UnknownStrategyError reports a patch strategy outside Strategies.
type UnknownStrategyError struct {
	Strategy Strategy
}

func (e *UnknownStrategyError) Error() string {
	return fmt.Sprintf("conflict: unknown resolution strategy %q", e.Strategy)
}
