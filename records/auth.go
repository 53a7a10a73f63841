package records

// Auth is the resolved identity of a caller. A nil *Auth stands for the
// system itself and passes every tenant check.
type Auth struct {
	CallerID  *int64 `json:"id"`
	RoleID    int64  `json:"roleId"`
	CompanyID *int64 `json:"companyId"`
}

// NewAuth builds a caller scoped to companyID
func NewAuth(callerID, roleID, companyID int64) *Auth {
	return &Auth{CallerID: &callerID, RoleID: roleID, CompanyID: &companyID}
}

func (a *Auth) companyValue() any {
	if a == nil {
		return nil
	}
	return ptrValue(a.CompanyID)
}
