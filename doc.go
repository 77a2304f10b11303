// Package jimmer holds the values shared by every save command: the save
// path locating an entity inside the saved graphs, the error taxonomy, and
// the chain of translators that may rewrite diagnosed errors.
//
// A diagnosed constraint violation is a *SaveError of one of two kinds:
//
//	var se *jimmer.SaveError
//	if errors.As(err, &se) && se.Kind == jimmer.NotUnique && se.IsMatched("name", "edition") {
//	    ...
//	}
//
// Driver failures that could not be diagnosed are reported as
// *ExecutionError, and misuse of the API as *ConfigurationError. Only
// SaveErrors go through translators.
package jimmer
