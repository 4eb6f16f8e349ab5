// Package moderation decides who may delete a comment.
package moderation

import (
	"chorus/internal/models"
)

// Actor is the authenticated user attempting the action.
type Actor struct {
	UserID uint
	Role   string
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// Target is a comment together with the owners of the things it hangs off.
// ParentAuthorID is set only for replies.
type Target struct {
	CommentAuthorID uint
	PostAuthorID    uint
	TopLevel        bool
	ParentAuthorID  *uint
}

// NewTarget builds a Target from a comment, the author of its post and, for
// replies, the loaded parent comment.
func NewTarget(comment *models.Comment, postAuthorID uint, parent *models.Comment) Target {
	t := Target{
		CommentAuthorID: comment.AuthorID,
		PostAuthorID:    postAuthorID,
		TopLevel:        comment.IsTopLevel(),
	}
	if parent != nil && !t.TopLevel {
		id := parent.AuthorID
		t.ParentAuthorID = &id
	}
	return t
}

// Rule grants deletion when Match returns true.
type Rule struct {
	Name  string
	Match func(Actor, Target) bool
}

// Rule names, reported in decisions and metrics.
const (
	RuleAdmin        = "admin"
	RuleCommentOwner = "comment_author"
	RulePostOwner    = "post_author"
	RuleParentOwner  = "parent_author"
	RuleDeny         = "deny"
)

// DeleteRules is evaluated in order; the first match wins.
var DeleteRules = []Rule{
	{Name: RuleAdmin, Match: func(a Actor, _ Target) bool {
		return a.IsAdmin()
	}},
	{Name: RuleCommentOwner, Match: func(a Actor, t Target) bool {
		return a.UserID == t.CommentAuthorID
	}},
	{Name: RulePostOwner, Match: func(a Actor, t Target) bool {
		return t.TopLevel && a.UserID == t.PostAuthorID
	}},
	{Name: RuleParentOwner, Match: func(a Actor, t Target) bool {
		return !t.TopLevel && t.ParentAuthorID != nil && a.UserID == *t.ParentAuthorID
	}},
}

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Rule    string
}

// Evaluate walks rules in order and returns the first match, or a deny.
func Evaluate(rules []Rule, actor Actor, target Target) Decision {
	for _, r := range rules {
		if r.Match(actor, target) {
			return Decision{Allowed: true, Rule: r.Name}
		}
	}
	return Decision{Rule: RuleDeny}
}

// CanDeleteComment applies DeleteRules. A denied decision comes with a
// Forbidden error.
func CanDeleteComment(actor Actor, target Target) (Decision, error) {
	d := Evaluate(DeleteRules, actor, target)
	if !d.Allowed {
		return d, models.NewForbiddenError("You are not allowed to delete this comment")
	}
	return d, nil
}
