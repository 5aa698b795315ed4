package patient

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patients table. MRN is the patient's unique business
// identifier; Active implements soft delete.
type Patient struct {
	ID                    uuid.UUID  `db:"id" json:"id"`
	MRN                   string     `db:"mrn" json:"mrn"`
	FirstName             string     `db:"first_name" json:"first_name"`
	LastName              string     `db:"last_name" json:"last_name"`
	DateOfBirth           time.Time  `db:"date_of_birth" json:"date_of_birth"`
	Gender                string     `db:"gender" json:"gender"`
	BloodType             *string    `db:"blood_type" json:"blood_type,omitempty"`
	Email                 *string    `db:"email" json:"email,omitempty"`
	Phone                 *string    `db:"phone" json:"phone,omitempty"`
	Address               *string    `db:"address" json:"address,omitempty"`
	EmergencyContactName  *string    `db:"emergency_contact_name" json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone *string    `db:"emergency_contact_phone" json:"emergency_contact_phone,omitempty"`
	Allergies             *string    `db:"allergies" json:"allergies,omitempty"`
	ChronicConditions     *string    `db:"chronic_conditions" json:"chronic_conditions,omitempty"`
	InsuranceProvider     *string    `db:"insurance_provider" json:"insurance_provider,omitempty"`
	InsuranceNumber       *string    `db:"insurance_number" json:"insurance_number,omitempty"`
	Active                bool       `db:"active" json:"active"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`
}

func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Age returns the patient's age in whole years as of now.
func (p *Patient) Age(now time.Time) int {
	years := now.Year() - p.DateOfBirth.Year()
	if now.YearDay() < p.DateOfBirth.YearDay() {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

var validGenders = map[string]bool{
	"MALE": true, "FEMALE": true, "OTHER": true,
}

var validBloodTypes = map[string]bool{
	"A_POSITIVE": true, "A_NEGATIVE": true,
	"B_POSITIVE": true, "B_NEGATIVE": true,
	"AB_POSITIVE": true, "AB_NEGATIVE": true,
	"O_POSITIVE": true, "O_NEGATIVE": true,
}
