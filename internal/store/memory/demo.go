package memory

import "garantias.org/internal/auth"

// DemoProfiles mirrors ops/migrations/seeds/0001_profiles.sql for local runs.
func DemoProfiles() []auth.Profile {
	return []auth.Profile{
		{UserID: "00000000-0000-4000-8000-000000000001", FullName: "Admin Operator", Email: "admin@garantias.local", Role: auth.RoleAdmin, Active: true},
		{UserID: "00000000-0000-4000-8000-000000000002", FullName: "National Analyst", Email: "national@garantias.local", Role: auth.RoleNational, Active: true},
		{UserID: "00000000-0000-4000-8000-000000000003", FullName: "North Officer", Email: "north@garantias.local", Role: auth.RoleRegional, Region: auth.RegionNorth, Active: true},
		{UserID: "00000000-0000-4000-8000-000000000004", FullName: "South Officer", Email: "south@garantias.local", Role: auth.RoleRegional, Region: auth.RegionSouth, Active: true},
		{UserID: "00000000-0000-4000-8000-000000000005", FullName: "Former Officer", Email: "former@garantias.local", Role: auth.RoleRegional, Region: auth.RegionEast, Active: false},
	}
}
