package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/identity/pkg/agents"
)

func TestGetCurrentAgent(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/agent", aliceEmail, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var agent agents.Agent
	decode(t, rec, &agent)
	assert.Equal(t, aliceEmail, agent.Email)
	assert.False(t, agent.IsSuper)

	rec = env.do(t, http.MethodGet, "/agent", rootEmail, nil)
	decode(t, rec, &agent)
	assert.True(t, agent.IsSuper)
}

func TestUpdateCurrentAgent(t *testing.T) {
	t.Run("name and profile", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodPatch, "/agent", aliceEmail, map[string]interface{}{
			"name":           "  Alice Liddell ",
			"social_profile": map[string]string{"github": "alice"},
		})

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var agent agents.Agent
		decode(t, rec, &agent)
		assert.Equal(t, "Alice Liddell", agent.Name)
		assert.JSONEq(t, `{"github":"alice"}`, string(agent.SocialProfile))
	})

	t.Run("omitted name is kept", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodPatch, "/agent", aliceEmail, map[string]interface{}{
			"social_profile": map[string]string{},
		})

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Alice", env.agents.byID[1].Name)
	})

	t.Run("profile must be an object", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodPatch, "/agent", aliceEmail, map[string]interface{}{
			"social_profile": []int{1, 2},
		})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, agents.ErrInvalidProfile.Error(), errorMessage(t, rec))
	})
}

func TestListAgents(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/agent/admin", aliceEmail, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/agent/admin", rootEmail, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []agents.Agent
	decode(t, rec, &list)
	require.Len(t, list, 3)
	for _, a := range list {
		assert.Equal(t, a.Email == rootEmail, a.IsSuper, a.Email)
	}
}

func TestGetAgent(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/agent/2", aliceEmail, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var agent agents.Agent
	decode(t, rec, &agent)
	assert.Equal(t, bobEmail, agent.Email)

	rec = env.do(t, http.MethodGet, "/agent/42", aliceEmail, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "agent not found", errorMessage(t, rec))

	rec = env.do(t, http.MethodGet, "/agent/0", aliceEmail, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteAgent(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodDelete, "/agent/2", aliceEmail, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodDelete, "/agent/2", rootEmail, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotContains(t, env.agents.byID, int64(2))

	rec = env.do(t, http.MethodDelete, "/agent/2", rootEmail, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodDelete, "/agent/3", rootEmail, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
