package records

// ReadPolicy decides whether auth may see rec
type ReadPolicy func(rec Record, auth *Auth) bool

// WritePolicy decides whether auth may write rec
type WritePolicy func(rec Record, auth *Auth) bool

// companyOf returns the tenant of rec. Storage rows use a missing key and
// nil interchangeably for SQL NULL.
func companyOf(rec Record) (int64, bool) {
	if rec.Null(FieldCompanyID) {
		return 0, false
	}
	id, ok := rec.Int(FieldCompanyID)
	if !ok {
		// a tenant we cannot read never matches anyone
		return -1, true
	}
	return id, true
}

func sameCompany(rec Record, auth *Auth) bool {
	id, scoped := companyOf(rec)
	return scoped && auth.CompanyID != nil && id == *auth.CompanyID
}

// CanRead allows shared rows (null company) and rows of the caller's own
// company.
func CanRead(rec Record, auth *Auth) bool {
	if auth == nil {
		return true
	}
	if _, scoped := companyOf(rec); !scoped {
		return true
	}
	return sameCompany(rec, auth)
}

// CanWrite allows only rows of the caller's own company. Shared rows are
// writable by the system alone.
func CanWrite(rec Record, auth *Auth) bool {
	if auth == nil {
		return true
	}
	return sameCompany(rec, auth)
}

// WritableByRoles extends CanWrite so callers holding one of roles may also
// write shared rows.
func WritableByRoles(roles ...int64) WritePolicy {
	return func(rec Record, auth *Auth) bool {
		if CanWrite(rec, auth) {
			return true
		}
		if _, scoped := companyOf(rec); scoped {
			return false
		}
		for _, r := range roles {
			if auth.RoleID == r {
				return true
			}
		}
		return false
	}
}
