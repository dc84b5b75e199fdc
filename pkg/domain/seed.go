package domain

import "time"

const (
	// DefaultFormInventory is the stock of admission forms on a fresh install.
	DefaultFormInventory = 150
	// DefaultTotalRevenue is the revenue carried by the demo seed.
	DefaultTotalRevenue = 25000
)

// SeedState returns the demo aggregate used when no prior state exists or the
// stored state cannot be decoded.
func SeedState(now time.Time) AppState {
	now = now.UTC()
	student := func(id, name, class string, gender Gender, form, payment, bio, transcript Status) Student {
		return Student{
			ID:           id,
			Name:         name,
			Class:        class,
			Gender:       gender,
			Cheat:        StatusCompleted,
			Form:         form,
			Payment:      payment,
			BioData:      bio,
			Transcript:   transcript,
			RectorReview: StatusPending,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}
	return AppState{
		Students: []Student{
			student("1", "Kwame Mensah", "Form 1 Science", GenderMale, StatusCompleted, StatusCompleted, StatusCompleted, StatusCompleted),
			student("2", "Ama Darko", "Form 1 General Arts", GenderFemale, StatusCompleted, StatusPending, StatusPending, StatusPending),
			student("3", "Kofi Asante", "Form 1 Business", GenderMale, StatusPending, StatusPending, StatusPending, StatusPending),
		},
		FormInventory: DefaultFormInventory,
		TotalRevenue:  DefaultTotalRevenue,
	}
}

// StandardClasses lists the cohort labels offered on the slip issuance form.
// Any non-empty class is accepted.
func StandardClasses() []string {
	return []string{
		"Form 1 Science",
		"Form 1 General Arts",
		"Form 1 Business",
		"Form 1 Home Economics",
		"Form 1 Visual Arts",
		"Form 1 Technical",
	}
}
