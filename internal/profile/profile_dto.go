package profile

type ProfileResponse struct {
	ID           string `json:"id"`
	CompanyID    string `json:"company_id"`
	DisplayName  string `json:"display_name"`
	LegalName    string `json:"legal_name"`
	AvatarURL    string `json:"avatar_url,omitempty"`
	OrgUnitCode  string `json:"org_unit_code,omitempty"`
	Role         string `json:"role"`
	DepartmentID string `json:"department_id,omitempty"`
	LocationID   string `json:"location_id,omitempty"`
}
