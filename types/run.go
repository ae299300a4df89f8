package types

// RunRecord counts the closed rosters a participant took part in.
type RunRecord struct {
	ParticipantId string   `json:"participant_id"`
	Total         int      `json:"total"`
	DPSRuns       int      `json:"dps_runs"`
	HealerRuns    int      `json:"healer_runs"`
	TankRuns      int      `json:"tank_runs"`
	LastTitle     string   `json:"last_title"`
	LastDate      Schedule `json:"last_date"`
}

// Add counts one more run in the given role.
func (r *RunRecord) Add(role Role, title string, date Schedule) {
	r.Total++
	switch role {
	case RoleDPS:
		r.DPSRuns++
	case RoleHealer:
		r.HealerRuns++
	case RoleTank:
		r.TankRuns++
	}
	r.LastTitle = title
	r.LastDate = date
}
