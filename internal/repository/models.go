package repository

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Verification statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusApproved   = "approved"
	StatusRejected   = "rejected"
	StatusExpired    = "expired"
	StatusCancelled  = "cancelled"
)

// Verification methods.
const (
	MethodAutomated = "automated"
	MethodManual    = "manual"
)

// Selfie statuses.
const (
	SelfiePending   = "pending"
	SelfieProcessed = "processed"
	SelfieFailed    = "failed"
)

// JSONMap stores schemaless extracted data as a JSON column.
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported JSONMap source type %T", value)
	}
	return json.Unmarshal(data, m)
}

// StringList stores a list of strings as a JSON column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported StringList source type %T", value)
	}
	return json.Unmarshal(data, l)
}

// User is the account record. Auth and registration live elsewhere; the
// pipeline only reads status and writes verification outcome fields.
type User struct {
	ID                    uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Email                 string     `gorm:"column:email;uniqueIndex;size:255"`
	Status                string     `gorm:"column:status;size:20;default:pending"`
	IsAdmin               bool       `gorm:"column:is_admin"`
	VerificationStatus    string     `gorm:"column:verification_status;size:20;default:unverified"`
	VerificationExpiresAt *time.Time `gorm:"column:verification_expires_at"`
	CreatedAt             time.Time  `gorm:"column:created_at"`
	UpdatedAt             time.Time  `gorm:"column:updated_at"`
}

func (User) TableName() string { return "users" }

// Profile carries self-declared attributes plus the verified_* fields the
// verification pipeline populates on approval. Empty strings mean "absent".
type Profile struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID uuid.UUID `gorm:"type:uuid;uniqueIndex"`

	VerifiedFirstName        string     `gorm:"column:verified_first_name;size:100"`
	VerifiedLastInitial      string     `gorm:"column:verified_last_initial;size:1"`
	VerifiedBirthDate        *time.Time `gorm:"column:verified_birth_date"`
	VerifiedBirthplaceCity   string     `gorm:"column:verified_birthplace_city;size:200"`
	VerifiedNationality      string     `gorm:"column:verified_nationality;size:100"`
	VerifiedResidenceCountry string     `gorm:"column:verified_residence_country;size:100"`
	VerifiedResidenceStatus  string     `gorm:"column:verified_residence_status;size:50"`
	VerifiedMaritalStatus    string     `gorm:"column:verified_marital_status;size:50"`
	VerifiedEducationLevel   string     `gorm:"column:verified_education_level;size:50"`

	Gender        string `gorm:"column:gender;size:20"`
	SeekingGender string `gorm:"column:seeking_gender;size:20"`

	HeightCm          int    `gorm:"column:height_cm"`
	Ethnicity         string `gorm:"column:ethnicity;size:50"`
	CurrentCity       string `gorm:"column:current_city;size:200"`
	ReligiousPractice string `gorm:"column:religious_practice;size:100"`
	Smoking           string `gorm:"column:smoking;size:30"`
	Alcohol           string `gorm:"column:alcohol;size:30"`
	Diet              string `gorm:"column:diet;size:30"`

	IsVisible bool      `gorm:"column:is_visible;default:true"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`

	User User `gorm:"foreignKey:UserID"`
}

func (Profile) TableName() string { return "profiles" }

// Selfie is the one-per-user reference photo with its face embedding.
// Re-uploads replace the record in place.
type Selfie struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserID           uuid.UUID  `gorm:"type:uuid;uniqueIndex"`
	FilePath         string     `gorm:"column:file_path;size:500"`
	OriginalFilename string     `gorm:"column:original_filename;size:255"`
	MimeType         string     `gorm:"column:mime_type;size:100"`
	FileSize         int64      `gorm:"column:file_size"`
	FaceEmbedding    []byte     `gorm:"column:face_embedding"`
	Status           string     `gorm:"column:status;size:20;default:pending"`
	ErrorMessage     string     `gorm:"column:error_message;size:500"`
	CreatedAt        time.Time  `gorm:"column:created_at"`
	ProcessedAt      *time.Time `gorm:"column:processed_at"`
}

func (Selfie) TableName() string { return "selfies" }

// Verification is one document-submission attempt.
type Verification struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserID             uuid.UUID  `gorm:"type:uuid;index"`
	DocumentType       string     `gorm:"column:document_type;size:50"`
	DocumentCountry    string     `gorm:"column:document_country;size:100"`
	Status             string     `gorm:"column:status;size:20;default:pending"`
	RejectionReason    string     `gorm:"column:rejection_reason;type:text"`
	ExtractedData      JSONMap    `gorm:"column:extracted_data;type:jsonb"`
	DocumentExpiryDate *time.Time `gorm:"column:document_expiry_date"`
	FilePath           string     `gorm:"column:file_path;size:500"`
	OriginalFilename   string     `gorm:"column:original_filename;size:255"`
	MimeType           string     `gorm:"column:mime_type;size:100"`
	FileSize           int64      `gorm:"column:file_size"`
	VerificationMethod string     `gorm:"column:verification_method;size:20"`
	VerifiedBy         *uuid.UUID `gorm:"type:uuid"`
	CreatedAt          time.Time  `gorm:"column:created_at"`
	SubmittedAt        *time.Time `gorm:"column:submitted_at"`
	VerifiedAt         *time.Time `gorm:"column:verified_at"`
}

func (Verification) TableName() string { return "verifications" }

// SearchPreference is a user's desired-partner filter set. Absence of the
// whole record, or of any list, means "no preference".
type SearchPreference struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID uuid.UUID `gorm:"type:uuid;uniqueIndex"`

	MinAge int `gorm:"column:min_age;default:18"`
	MaxAge int `gorm:"column:max_age;default:99"`

	PreferredCountries          StringList `gorm:"column:preferred_countries;type:jsonb"`
	PreferredCities             StringList `gorm:"column:preferred_cities;type:jsonb"`
	PreferredEthnicities        StringList `gorm:"column:preferred_ethnicities;type:jsonb"`
	PreferredMaritalStatuses    StringList `gorm:"column:preferred_marital_statuses;type:jsonb"`
	PreferredEducationLevels    StringList `gorm:"column:preferred_education_levels;type:jsonb"`
	PreferredReligiousPractices StringList `gorm:"column:preferred_religious_practices;type:jsonb"`
	PreferredSmoking            StringList `gorm:"column:preferred_smoking;type:jsonb"`
	PreferredAlcohol            StringList `gorm:"column:preferred_alcohol;type:jsonb"`
	PreferredDiet               StringList `gorm:"column:preferred_diet;type:jsonb"`

	MinHeightCm int `gorm:"column:min_height_cm"`
	MaxHeightCm int `gorm:"column:max_height_cm"`

	MustBeVerified        bool   `gorm:"column:must_be_verified;default:true"`
	HasChildrenAcceptable bool   `gorm:"column:has_children_acceptable;default:true"`
	ChildrenPreference    string `gorm:"column:children_preference;size:50;default:no_preference"`

	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (SearchPreference) TableName() string { return "search_preferences" }

// Interest is a one-directional expression of interest.
type Interest struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	FromUserID  uuid.UUID  `gorm:"type:uuid;index"`
	ToUserID    uuid.UUID  `gorm:"type:uuid;index"`
	Status      string     `gorm:"column:status;size:20;default:pending"`
	Message     string     `gorm:"column:message;type:text"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	ExpiresAt   *time.Time `gorm:"column:expires_at"`
	RespondedAt *time.Time `gorm:"column:responded_at"`
}

func (Interest) TableName() string { return "interests" }

// Match links two mutually-interested users; user_a_id < user_b_id.
type Match struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserAID     uuid.UUID  `gorm:"type:uuid;index"`
	UserBID     uuid.UUID  `gorm:"type:uuid;index"`
	Status      string     `gorm:"column:status;size:20;default:active"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	UnmatchedBy *uuid.UUID `gorm:"type:uuid"`
	UnmatchedAt *time.Time `gorm:"column:unmatched_at"`
}

func (Match) TableName() string { return "matches" }
