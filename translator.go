package jimmer

import "context"

// TranslateContext describes the failed statement a SaveError was
// diagnosed from.
type TranslateContext struct {
	// Dialect is the dialect name of the command.
	Dialect string
	// SQL is the text of the failed statement.
	SQL string
	// Rows are the parameter rows of the failed statement.
	Rows [][]any
	// Path locates the entity whose row failed.
	Path Path
}

// Translator may replace a diagnosed SaveError with a caller-defined
// error. Returning nil keeps the error and passes it to the next
// translator.
type Translator interface {
	Translate(context.Context, *SaveError, TranslateContext) error
}

// TranslatorFunc type is an adapter which allows the use of ordinary
// functions as translators.
type TranslatorFunc func(context.Context, *SaveError, TranslateContext) error

// Translate returns f(ctx, err, tc).
func (f TranslatorFunc) Translate(ctx context.Context, err *SaveError, tc TranslateContext) error {
	return f(ctx, err, tc)
}

// OnKind evaluates the translator only on errors of the given kind.
func OnKind(kind SaveErrorKind, t Translator) Translator {
	return TranslatorFunc(func(ctx context.Context, err *SaveError, tc TranslateContext) error {
		if err.Kind != kind {
			return nil
		}
		return t.Translate(ctx, err, tc)
	})
}

// OnType evaluates the translator only on errors of the given entity type.
func OnType(typ string, t Translator) Translator {
	return TranslatorFunc(func(ctx context.Context, err *SaveError, tc TranslateContext) error {
		if err.Type != typ {
			return nil
		}
		return t.Translate(ctx, err, tc)
	})
}

// Translators is an ordered list of translators. The process-wide list is
// built once and shared; commands extend a copy of it with With.
type Translators []Translator

// With returns a copy of ts followed by the given translators. The
// receiver is left untouched.
func (ts Translators) With(more ...Translator) Translators {
	out := make(Translators, 0, len(ts)+len(more))
	out = append(out, ts...)
	return append(out, more...)
}

// Translate runs the chain, most recently registered translator first, and
// returns the first replacement. If no translator replaces err, err itself
// is returned.
func (ts Translators) Translate(ctx context.Context, err *SaveError, tc TranslateContext) error {
	for i := len(ts) - 1; i >= 0; i-- {
		if replaced := ts[i].Translate(ctx, err, tc); replaced != nil {
			return replaced
		}
	}
	return err
}
