package script

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Klingon-tech/klingnet-multisig/pkg/crypto"
	"github.com/Klingon-tech/klingnet-multisig/pkg/errors"
	"github.com/Klingon-tech/klingnet-multisig/pkg/types"
	"github.com/stretchr/testify/require"
)

func testKeys(t *testing.T) types.KeySet {
	t.Helper()
	var ks types.KeySet
	for i := range ks {
		pk, err := crypto.GenerateKey()
		require.NoError(t, err)
		ks[i] = pk.PublicKey()
	}
	return ks
}

func TestRenderBindsEachSlot(t *testing.T) {
	e, err := NewEngine(DefaultTemplate)
	require.NoError(t, err)
	ks := testKeys(t)

	out, err := e.Render(ks)
	require.NoError(t, err)
	require.NotContains(t, out, "{{")

	// Slots keep caller order and each key appears exactly once.
	i0 := strings.Index(out, Binding(ks[0]))
	i1 := strings.Index(out, Binding(ks[1]))
	i2 := strings.Index(out, Binding(ks[2]))
	require.True(t, i0 >= 0 && i0 < i1 && i1 < i2, "slots out of order")
	for _, k := range ks {
		require.Equal(t, 1, strings.Count(out, Binding(k)))
	}
}

func TestRenderDeterministic(t *testing.T) {
	e, err := NewEngine(DefaultTemplate)
	require.NoError(t, err)
	ks := testKeys(t)

	a, err := e.Render(ks)
	require.NoError(t, err)
	b, err := e.Render(ks)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestBindingIsKeyAddress(t *testing.T) {
	ks := testKeys(t)
	b := Binding(ks[0])
	require.True(t, strings.HasPrefix(b, "0x"))
	require.Len(t, b, 66)
	require.Equal(t, crypto.KeyAddress(ks[0]).String(), b)
}

func TestNewEngineRejectsBadTemplates(t *testing.T) {
	cases := map[string]string{
		"missing slot": "{{public_key_1}} {{public_key_2}}",
		"duplicated":   "{{public_key_1}} {{public_key_2}} {{public_key_2}}",
		"unbalanced":   "{{public_key_1}} {{public_key_2}} {{public_key_3",
	}
	for name, tmpl := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewEngine(tmpl)
			require.True(t, errors.Is(err, errors.ErrTemplateRender), "got %v", err)
		})
	}
}

func TestRenderUnknownPlaceholder(t *testing.T) {
	e, err := NewEngine("{{public_key_1}} {{public_key_2}} {{public_key_3}} {{threshold}}")
	require.NoError(t, err)
	_, err = e.Render(testKeys(t))
	require.True(t, errors.Is(err, errors.ErrTemplateRender), "got %v", err)
}

func TestMaterialize(t *testing.T) {
	e, err := NewEngine(DefaultTemplate)
	require.NoError(t, err)
	ws := NewWorkspace(t.TempDir(), e)
	id := types.WalletID(crypto.SHA256([]byte("id")))

	p, err := ws.Materialize(id, "predicate;")
	require.NoError(t, err)
	require.Equal(t, ws.Dir(id), p.Dir)

	src, err := os.ReadFile(filepath.Join(p.Dir, "src", "main.sw"))
	require.NoError(t, err)
	require.Equal(t, "predicate;", string(src))

	manifest, err := os.ReadFile(filepath.Join(p.Dir, "Forc.toml"))
	require.NoError(t, err)
	require.Contains(t, string(manifest), `name = "`+p.Name+`"`)
	require.Contains(t, string(manifest), `entry = "main.sw"`)

	// Rewriting the same project replaces files in place.
	_, err = ws.Materialize(id, "predicate; // v2")
	require.NoError(t, err)
	src, err = os.ReadFile(filepath.Join(p.Dir, "src", "main.sw"))
	require.NoError(t, err)
	require.Equal(t, "predicate; // v2", string(src))

	require.NoError(t, ws.Remove(id))
	_, err = os.Stat(p.Dir)
	require.True(t, os.IsNotExist(err))
}

func TestMaterializeFailureIsCompileError(t *testing.T) {
	e, err := NewEngine(DefaultTemplate)
	require.NoError(t, err)
	root := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(root, []byte("x"), 0o600))
	ws := NewWorkspace(root, e)

	_, err = ws.Materialize(types.WalletID(crypto.SHA256([]byte("id"))), "predicate;")
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrCompile))
	require.Contains(t, err.Error(), "create project dir")
}

func TestPrune(t *testing.T) {
	e, err := NewEngine(DefaultTemplate)
	require.NoError(t, err)
	ws := NewWorkspace(t.TempDir(), e)

	oldID := types.WalletID(crypto.SHA256([]byte("old")))
	newID := types.WalletID(crypto.SHA256([]byte("new")))
	_, err = ws.Materialize(oldID, "a")
	require.NoError(t, err)
	_, err = ws.Materialize(newID, "b")
	require.NoError(t, err)

	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(ws.Dir(oldID), past, past))

	n, err := ws.Prune(time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	_, err = os.Stat(ws.Dir(newID))
	require.NoError(t, err)
}

func TestPruneMissingRoot(t *testing.T) {
	e, err := NewEngine(DefaultTemplate)
	require.NoError(t, err)
	ws := NewWorkspace(filepath.Join(t.TempDir(), "absent"), e)
	n, err := ws.Prune(time.Hour)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestFingerprint(t *testing.T) {
	a, err := NewEngine(DefaultTemplate)
	require.NoError(t, err)
	b, err := NewEngine(DefaultTemplate)
	require.NoError(t, err)
	c, err := NewEngine(DefaultTemplate + "\n// v2\n")
	require.NoError(t, err)

	require.Equal(t, a.Fingerprint(), b.Fingerprint())
	require.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}
