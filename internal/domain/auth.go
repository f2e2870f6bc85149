package domain

// SubjectType differentiates company vs staff tokens.
type SubjectType string

const (
	SubjectTypeCompany SubjectType = "COMPANY"
	SubjectTypeStaff   SubjectType = "STAFF"
)
