package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/LorenzoCecattoPaim/Math/internal/api/rest"
	"github.com/LorenzoCecattoPaim/Math/internal/storage/memory"
	"github.com/LorenzoCecattoPaim/Math/internal/testutil"
	"github.com/LorenzoCecattoPaim/Math/internal/token"
	"github.com/LorenzoCecattoPaim/Math/internal/validate"
)

type harness struct {
	api    *testutil.FakeAPI
	tokens *token.Store
	client *rest.Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	log := testutil.MakeNoopLogger()
	tokens, err := token.NewStore(memory.NewStore(), log)
	require.NoError(t, err)

	api := testutil.NewFakeAPI(t)

	return &harness{
		api:    api,
		tokens: tokens,
		client: rest.NewClient(api.URL(), tokens, log, rest.WithTimeout(2*time.Second)),
	}
}

// signIn registers a user and stores a valid token for it.
func (h *harness) signIn(t *testing.T, email string) {
	t.Helper()

	h.api.AddUser(email, "secret123", "Aluno")
	require.NoError(t, h.tokens.Set(h.api.IssueToken(email)))
}

func (h *harness) auth() *Auth {
	return NewAuth(h.client, h.tokens, validate.New(0), 5*time.Second, testutil.MakeNoopLogger())
}
