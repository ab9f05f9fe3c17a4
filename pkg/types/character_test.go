package types

import "testing"

func TestDeriveLifecycle_CoreOnlyForLeads(t *testing.T) {
	cases := []struct {
		role RoleTag
		want Lifecycle
	}{
		{RoleProtagonist, LifecycleCore},
		{RoleAntagonist, LifecycleCore},
		{RoleMajor, LifecycleArcSupport},
		{RoleSupport, LifecycleTempSupport},
		{RoleCameo, LifecycleCameo},
	}

	for _, tc := range cases {
		got := DeriveLifecycle(tc.role)
		if got != tc.want {
			t.Errorf("DeriveLifecycle(%s) = %s, want %s", tc.role, got, tc.want)
		}
		// CORE if and only if protagonist or antagonist.
		isLead := tc.role == RoleProtagonist || tc.role == RoleAntagonist
		if (got == LifecycleCore) != isLead {
			t.Errorf("lifecycle CORE mismatch for role %s", tc.role)
		}
	}
}

func TestDeriveLifecycle_UnknownRoleIsCameo(t *testing.T) {
	if got := DeriveLifecycle(RoleTag("VILLAGER")); got != LifecycleCameo {
		t.Errorf("unknown role should derive CAMEO, got %s", got)
	}
}

func TestIsValidRoleTag(t *testing.T) {
	for _, tag := range ValidRoleTags {
		if !IsValidRoleTag(tag) {
			t.Errorf("expected %s to be valid", tag)
		}
	}
	if IsValidRoleTag(RoleTag("HERO")) {
		t.Error("HERO should not be a valid role tag")
	}
}

func TestIsEnrichmentPending(t *testing.T) {
	if !IsEnrichmentPending("") {
		t.Error("empty string should be pending")
	}
	if !IsEnrichmentPending(PendingValue) {
		t.Error("placeholder should be pending")
	}
	if IsEnrichmentPending("沉默寡言") {
		t.Error("real value should not be pending")
	}
}
