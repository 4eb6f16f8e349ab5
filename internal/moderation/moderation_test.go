package moderation

import (
	"testing"

	"chorus/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uintPtr(v uint) *uint { return &v }

func TestCanDeleteComment(t *testing.T) {
	t.Parallel()

	// Post by 1. Top-level comment by 2. Reply by 3 under 2's comment.
	topLevel := Target{CommentAuthorID: 2, PostAuthorID: 1, TopLevel: true}
	reply := Target{CommentAuthorID: 3, PostAuthorID: 1, ParentAuthorID: uintPtr(2)}

	tests := []struct {
		name     string
		actor    Actor
		target   Target
		allowed  bool
		wantRule string
	}{
		{name: "admin on top-level", actor: Actor{UserID: 99, Role: models.RoleAdmin}, target: topLevel, allowed: true, wantRule: RuleAdmin},
		{name: "admin on reply", actor: Actor{UserID: 99, Role: models.RoleAdmin}, target: reply, allowed: true, wantRule: RuleAdmin},
		{name: "comment author", actor: Actor{UserID: 2, Role: models.RoleUser}, target: topLevel, allowed: true, wantRule: RuleCommentOwner},
		{name: "reply author", actor: Actor{UserID: 3, Role: models.RoleUser}, target: reply, allowed: true, wantRule: RuleCommentOwner},
		{name: "post author on top-level", actor: Actor{UserID: 1, Role: models.RoleUser}, target: topLevel, allowed: true, wantRule: RulePostOwner},
		{name: "post author on reply", actor: Actor{UserID: 1, Role: models.RoleUser}, target: reply, allowed: false, wantRule: RuleDeny},
		{name: "parent author on reply", actor: Actor{UserID: 2, Role: models.RoleUser}, target: reply, allowed: true, wantRule: RuleParentOwner},
		{name: "stranger on top-level", actor: Actor{UserID: 4, Role: models.RoleUser}, target: topLevel, allowed: false, wantRule: RuleDeny},
		{name: "stranger on reply", actor: Actor{UserID: 4, Role: models.RoleUser}, target: reply, allowed: false, wantRule: RuleDeny},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d, err := CanDeleteComment(tt.actor, tt.target)
			assert.Equal(t, tt.allowed, d.Allowed)
			assert.Equal(t, tt.wantRule, d.Rule)
			if tt.allowed {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, models.IsCode(err, models.CodeForbidden))
		})
	}
}

func TestNewTarget(t *testing.T) {
	t.Parallel()

	top := &models.Comment{ID: 10, AuthorID: 2, PostID: 1}
	tt := NewTarget(top, 1, nil)
	assert.True(t, tt.TopLevel)
	assert.Nil(t, tt.ParentAuthorID)

	reply := &models.Comment{ID: 11, AuthorID: 3, PostID: 1, ParentCommentID: uintPtr(10)}
	rt := NewTarget(reply, 1, top)
	assert.False(t, rt.TopLevel)
	require.NotNil(t, rt.ParentAuthorID)
	assert.Equal(t, uint(2), *rt.ParentAuthorID)
}

func TestEvaluate_FirstMatchWins(t *testing.T) {
	t.Parallel()

	rules := []Rule{
		{Name: "a", Match: func(Actor, Target) bool { return true }},
		{Name: "b", Match: func(Actor, Target) bool { return true }},
	}
	assert.Equal(t, Decision{Allowed: true, Rule: "a"}, Evaluate(rules, Actor{}, Target{}))
	assert.Equal(t, Decision{Rule: RuleDeny}, Evaluate(nil, Actor{}, Target{}))
}
