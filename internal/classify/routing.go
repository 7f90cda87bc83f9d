package classify

import "strings"

// Owner roles assigned to new state vectors.
const (
	RoleMedicalAssistant  = "medical_assistant"
	RoleBillingSpecialist = "billing_specialist"
	RoleFrontDesk         = "front_desk"
	RoleOfficeManager     = "office_manager"
	RoleSystemArchive     = "system_archive"
	RoleLeadDoctor        = "lead_doctor"
	RolePracticeManager   = "practice_manager"
)

// PromotionRisk is the risk above which clinical and billing work is routed to senior roles.
const PromotionRisk = 0.8

var intentRoles = map[string]string{
	"CLINICAL":   RoleMedicalAssistant,
	"BILLING":    RoleBillingSpecialist,
	"ADMIN":      RoleFrontDesk,
	"SCHEDULING": RoleFrontDesk,
	"VENDOR":     RoleOfficeManager,
	"SPAM":       RoleSystemArchive,
}

// OwnerRole routes an intent label and risk score to the role that owns the work.
func OwnerRole(intent string, risk float64) string {
	intent = strings.ToUpper(strings.TrimSpace(intent))

	role, ok := intentRoles[intent]
	if !ok {
		role = RoleFrontDesk
	}

	if risk > PromotionRisk {
		switch intent {
		case "CLINICAL":
			role = RoleLeadDoctor
		case "BILLING":
			role = RolePracticeManager
		}
	}

	return role
}
