package authz

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulib/edulib-api/internal/models"
	appErrors "github.com/edulib/edulib-api/pkg/errors"
)

func student(id string) *models.User {
	return &models.User{ID: id, Role: models.RoleStudent, Trust: models.TrustApproved}
}

func staff(id string) *models.User {
	u := student(id)
	u.Staff = true
	return u
}

func blocked(id string) *models.User {
	u := student(id)
	u.Blocked = true
	return u
}

func publicResource(owner string) *models.Resource {
	return &models.Resource{ID: "r1", OwnerID: owner, Status: models.ResourceApproved}
}

func pendingResource(owner string) *models.Resource {
	return &models.Resource{ID: "r1", OwnerID: owner, Status: models.ResourcePending}
}

func TestCan(t *testing.T) {
	hidden := publicResource("owner")
	hidden.Hidden = true

	tests := []struct {
		name    string
		actor   *models.User
		action  Action
		target  Target
		allowed bool
		status  int
	}{
		{"anonymous views public resource", nil, ActionViewResource, Target{Resource: publicResource("owner")}, true, 0},
		{"anonymous cannot view pending resource", nil, ActionViewResource, Target{Resource: pendingResource("owner")}, false, http.StatusUnauthorized},
		{"owner views own pending resource", student("owner"), ActionViewResource, Target{Resource: pendingResource("owner")}, true, 0},
		{"staff views any resource", staff("s1"), ActionViewResource, Target{Resource: pendingResource("owner")}, true, 0},
		{"stranger cannot view hidden resource", student("u2"), ActionViewResource, Target{Resource: hidden}, false, http.StatusForbidden},

		{"anonymous cannot create", nil, ActionCreateResource, Target{}, false, http.StatusUnauthorized},
		{"blocked cannot create", blocked("u1"), ActionCreateResource, Target{}, false, http.StatusUnauthorized},
		{"student may create", student("u1"), ActionCreateResource, Target{}, true, 0},

		{"blocked cannot rate even public", blocked("u1"), ActionRate, Target{Resource: publicResource("owner")}, false, http.StatusUnauthorized},
		{"rate requires publicly listable", student("u1"), ActionRate, Target{Resource: pendingResource("owner")}, false, http.StatusForbidden},
		{"rate public allowed", student("u1"), ActionRate, Target{Resource: publicResource("owner")}, true, 0},
		{"save hidden forbidden", student("u1"), ActionSave, Target{Resource: hidden}, false, http.StatusForbidden},

		{"non-staff cannot moderate resources", student("u1"), ActionModerateResource, Target{}, false, http.StatusForbidden},
		{"staff moderates resources", staff("s1"), ActionModerateResource, Target{}, true, 0},
		{"blocked staff cannot moderate", func() *models.User { u := staff("s1"); u.Blocked = true; return u }(), ActionModerateUser, Target{}, false, http.StatusUnauthorized},

		{"owner deletes own resource", student("owner"), ActionDeleteResource, Target{Resource: publicResource("owner")}, true, 0},
		{"stranger cannot delete", student("u2"), ActionDeleteResource, Target{Resource: publicResource("owner")}, false, http.StatusForbidden},
		{"staff deletes any resource", staff("s1"), ActionDeleteResource, Target{Resource: publicResource("owner")}, true, 0},

		{"author deletes own comment", student("u1"), ActionDeleteComment, Target{Comment: &models.Comment{ID: "c1", AuthorID: "u1"}}, true, 0},
		{"stranger cannot delete comment", student("u2"), ActionDeleteComment, Target{Comment: &models.Comment{ID: "c1", AuthorID: "u1"}}, false, http.StatusForbidden},
		{"staff deletes any comment", staff("s1"), ActionDeleteComment, Target{Comment: &models.Comment{ID: "c1", AuthorID: "u1"}}, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := Can(tt.actor, tt.action, tt.target)
			assert.Equal(t, tt.allowed, decision.Allowed)
			if tt.allowed {
				assert.NoError(t, decision.Err())
				return
			}
			err := decision.Err()
			require.Error(t, err)
			appErr := appErrors.FromError(err)
			assert.Equal(t, tt.status, appErr.Status)
		})
	}
}

func TestPendingTeacherMayCreate(t *testing.T) {
	teacher := &models.User{ID: "t1", Role: models.RoleTeacher, Trust: models.TrustPending}
	decision := Can(teacher, ActionCreateResource, Target{})
	assert.True(t, decision.Allowed)
}
