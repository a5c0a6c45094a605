// Package script renders wallet authorization scripts and lays them out as
// compiler projects on disk.
package script

import (
	"io"

	"github.com/valyala/fasttemplate"

	"github.com/Klingon-tech/klingnet-multisig/pkg/crypto"
	"github.com/Klingon-tech/klingnet-multisig/pkg/errors"
	"github.com/Klingon-tech/klingnet-multisig/pkg/types"
)

const (
	startTag = "{{"
	endTag   = "}}"
)

// Engine renders authorization scripts from a parsed template.
type Engine struct {
	tmpl        *fasttemplate.Template
	manifest    *fasttemplate.Template
	fingerprint types.Hash
}

// NewEngine parses tmpl. It fails when the tags are unbalanced or a slot
// placeholder is missing.
func NewEngine(tmpl string) (*Engine, error) {
	t, err := fasttemplate.NewTemplate(tmpl, startTag, endTag)
	if err != nil {
		return nil, errors.WithRoot(errors.ErrTemplateRender, err, "parse template")
	}

	seen := make(map[string]bool)
	_, err = t.ExecuteFuncStringWithErr(func(w io.Writer, tag string) (int, error) {
		seen[tag] = true
		return 0, nil
	})
	if err != nil {
		return nil, errors.WithRoot(errors.ErrTemplateRender, err, "scan template")
	}
	for _, p := range Placeholders {
		if !seen[p] {
			return nil, errors.ErrTemplateRender.Newf("template lacks placeholder %s%s%s", startTag, p, endTag)
		}
	}

	m, err := fasttemplate.NewTemplate(manifestTemplate, startTag, endTag)
	if err != nil {
		return nil, errors.WithRoot(errors.ErrTemplateRender, err, "parse manifest")
	}
	return &Engine{
		tmpl:        t,
		manifest:    m,
		fingerprint: crypto.SHA256([]byte(tmpl), []byte(manifestTemplate)),
	}, nil
}

// Fingerprint identifies the template text. Wallets rendered from different
// templates have different fingerprints.
func (e *Engine) Fingerprint() types.Hash {
	return e.fingerprint
}

// Render substitutes each slot with the signer binding of the key at the
// same position. Keys are never reordered here.
func (e *Engine) Render(keys types.KeySet) (string, error) {
	bindings := make(map[string]string, len(Placeholders))
	for i, p := range Placeholders {
		bindings[p] = Binding(keys[i])
	}
	out, err := e.tmpl.ExecuteFuncStringWithErr(func(w io.Writer, tag string) (int, error) {
		v, ok := bindings[tag]
		if !ok {
			return 0, errors.ErrTemplateRender.Newf("unknown placeholder %q", tag)
		}
		return w.Write([]byte(v))
	})
	if err != nil {
		return "", errors.Wrap(err, "render")
	}
	return out, nil
}

// Manifest renders the project descriptor for the given project name.
func (e *Engine) Manifest(name string) string {
	return e.manifest.ExecuteString(map[string]interface{}{"name": name})
}

// Binding returns the literal a slot is replaced with: the ledger address
// owned by key, as a b256 literal.
func Binding(key types.PublicKey) string {
	return crypto.KeyAddress(key).String()
}
