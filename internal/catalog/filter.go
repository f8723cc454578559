// Harborstay - Direct Booking Sync Service for Vacation Rentals
// Copyright 2026 Harborstay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborstay/harborstay

package catalog

// Filter narrows List results. Zero-valued fields are ignored; pointer
// fields distinguish "unset" from "false".
type Filter struct {
	Published    *bool
	Active       *bool
	PlatformType string
	City         string

	Limit  int
	Offset int
}

// whereClause builds the WHERE fragment and bind arguments for the filter.
func (f Filter) whereClause() (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if f.Published != nil {
		clauses = append(clauses, "is_published = ?")
		args = append(args, *f.Published)
	}
	if f.Active != nil {
		clauses = append(clauses, "is_active = ?")
		args = append(args, *f.Active)
	}
	if f.PlatformType != "" {
		clauses = append(clauses, "platform_type = ?")
		args = append(args, f.PlatformType)
	}
	if f.City != "" {
		clauses = append(clauses, "city = ?")
		args = append(args, f.City)
	}

	if len(clauses) == 0 {
		return "", nil
	}

	where := " WHERE " + clauses[0]
	for _, c := range clauses[1:] {
		where += " AND " + c
	}
	return where, args
}
