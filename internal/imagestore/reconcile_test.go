package imagestore

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leca/image-vault/internal/metrics"
)

func TestReconcile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	kept := env.upload(t, jpeg("kept.jpg", "k"))
	gone := env.upload(t, jpeg("gone.jpg", "g"))

	// A row whose object vanished, and an object nobody owns.
	require.NoError(t, env.objects.Delete(ctx, gone.Key))
	stray := ObjectKey(env.user.ObjectBasePath, "0190b3c4-0000-7000-8000-000000000000", "png")
	_, err := env.objects.Put(ctx, stray, []byte("stray"), "image/png")
	require.NoError(t, err)

	rec, err := env.store.Reconcile(ctx, env.user)
	require.NoError(t, err)
	assert.Equal(t, "alice", rec.Username)
	assert.Equal(t, 2, rec.Objects)
	assert.Equal(t, 2, rec.Images)
	assert.Equal(t, []string{stray}, rec.OrphanObjects)
	assert.Equal(t, []string{gone.ID}, rec.OrphanImages)
	assert.NotContains(t, rec.OrphanImages, kept.ID)
	assert.False(t, rec.Clean())

	require.NoError(t, env.store.Delete(ctx, env.user, gone.ID))
	require.NoError(t, env.objects.Delete(ctx, stray))

	rec, err = env.store.Reconcile(ctx, env.user)
	require.NoError(t, err)
	assert.True(t, rec.Clean())
	assert.Equal(t, 1, rec.Images)
}

func TestReconcileOrphanGaugePerUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m := metrics.New()
	env.store = New(env.db, env.objects, zerolog.Nop(), m)

	bob, err := env.db.CreateUser(ctx, "bob")
	require.NoError(t, err)
	stray := ObjectKey(bob.ObjectBasePath, "0190b3c4-0000-7000-8000-000000000000", "png")
	_, err = env.objects.Put(ctx, stray, []byte("stray"), "image/png")
	require.NoError(t, err)

	_, err = env.store.Reconcile(ctx, bob)
	require.NoError(t, err)
	_, err = env.store.Reconcile(ctx, env.user)
	require.NoError(t, err)

	expected := `
# HELP imgvault_orphans_found Orphans found by the last reconciliation of each user, by kind.
# TYPE imgvault_orphans_found gauge
imgvault_orphans_found{kind="image",username="alice"} 0
imgvault_orphans_found{kind="image",username="bob"} 0
imgvault_orphans_found{kind="object",username="alice"} 0
imgvault_orphans_found{kind="object",username="bob"} 1
`
	assert.NoError(t, testutil.CollectAndCompare(m, strings.NewReader(expected), "imgvault_orphans_found"))
}
