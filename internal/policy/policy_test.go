package policy

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type PolicySuite struct {
	suite.Suite
}

func TestPolicySuite(t *testing.T) {
	suite.Run(t, new(PolicySuite))
}

func (s *PolicySuite) TestValidRole() {
	for _, r := range []Role{RoleSuperAdmin, RoleAdmin, RoleFinanceAdmin, RoleContentAdmin} {
		s.True(ValidRole(r), string(r))
	}
	s.False(ValidRole(Role("intern")))
	s.False(ValidRole(Role("")))
}

func (s *PolicySuite) TestAllowed() {
	s.Run("finance roles guard money operations", func() {
		s.True(Allowed(ResourcePayment, ActionDelete, RoleFinanceAdmin))
		s.True(Allowed(ResourcePayment, ActionDelete, RoleSuperAdmin))
		s.False(Allowed(ResourcePayment, ActionDelete, RoleContentAdmin))
	})

	s.Run("only super admins manage administrator accounts", func() {
		s.True(Allowed(ResourceAdministrator, ActionCreate, RoleSuperAdmin))
		s.False(Allowed(ResourceAdministrator, ActionCreate, RoleAdmin))
		s.True(Allowed(ResourceAdministrator, ActionRead, RoleAdmin))
	})

	s.Run("content admins read the dashboard but not payments", func() {
		s.True(Allowed(ResourceDashboard, ActionRead, RoleContentAdmin))
		s.False(Allowed(ResourcePayment, ActionRead, RoleContentAdmin))
	})

	s.Run("absent entries deny every role", func() {
		s.False(Allowed(ResourceMember, ActionDelete, RoleSuperAdmin))
		s.False(Allowed(Resource("unknown"), ActionRead, RoleSuperAdmin))
	})
}

func (s *PolicySuite) TestAllowedRoles() {
	s.ElementsMatch([]Role{RoleSuperAdmin}, AllowedRoles(ResourceAdministrator, ActionCreate))
	s.Empty(AllowedRoles(Resource("unknown"), ActionRead))
}
