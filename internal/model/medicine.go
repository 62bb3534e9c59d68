package model

// Medicine is an inventory item.
type Medicine struct {
	ID            string  `json:"_id"`
	Name          string  `json:"name"`
	GenericName   string  `json:"genericName,omitempty"`
	Category      string  `json:"category"`
	Form          string  `json:"form"`
	Strength      string  `json:"strength"`
	Price         float64 `json:"price"`
	StockQuantity int     `json:"stockQuantity"`
	ReorderLevel  int     `json:"reorderLevel"`
	Manufacturer  string  `json:"manufacturer,omitempty"`
}

const (
	DefaultMedicineCategory     = "Other"
	DefaultMedicineForm         = "Tablet"
	DefaultMedicineReorderLevel = 100
	DefaultMedicineManufacturer = "Various"

	CategoryAll = "all"
)

var MedicineCategories = []string{
	"Antibiotic",
	"Painkiller",
	"Antacid",
	"Antihistamine",
	"Antidiabetic",
	"Antihypertensive",
	"Vitamin",
	"Supplement",
	"Antiviral",
	"Antifungal",
	"Neurological",
	"Cardiovascular",
	"Gastrointestinal",
	"Respiratory",
	"Dermatological",
	"Contrast Media",
	"Other",
}

var MedicineForms = []string{
	"Tablet",
	"Capsule",
	"Syrup",
	"Injection",
	"Drops",
	"Cream",
	"Ointment",
	"Inhaler",
	"Gel",
	"Lotion",
	"Spray",
	"Suspension",
	"Solution",
	"Suppository",
	"Respules",
	"Sachet",
	"Other",
}

// MedicineRequest is the add/edit form.
type MedicineRequest struct {
	Name          string   `json:"name" validate:"required"`
	GenericName   string   `json:"genericName"`
	Category      string   `json:"category" validate:"omitempty,medcategory"`
	Form          string   `json:"form" validate:"omitempty,medform"`
	Strength      string   `json:"strength" validate:"required"`
	Price         *float64 `json:"price" validate:"required,gte=0"`
	StockQuantity int      `json:"stockQuantity" validate:"gte=0"`
	ReorderLevel  *int     `json:"reorderLevel" validate:"omitempty,gte=0"`
	Manufacturer  string   `json:"manufacturer"`
}

// MedicinePatch is a partial edit; nil fields are left alone by the backend.
type MedicinePatch struct {
	Name          *string  `json:"name,omitempty" validate:"omitempty,min=1"`
	GenericName   *string  `json:"genericName,omitempty"`
	Category      *string  `json:"category,omitempty" validate:"omitempty,medcategory"`
	Form          *string  `json:"form,omitempty" validate:"omitempty,medform"`
	Strength      *string  `json:"strength,omitempty"`
	Price         *float64 `json:"price,omitempty" validate:"omitempty,gte=0"`
	StockQuantity *int     `json:"stockQuantity,omitempty" validate:"omitempty,gte=0"`
	ReorderLevel  *int     `json:"reorderLevel,omitempty" validate:"omitempty,gte=0"`
	Manufacturer  *string  `json:"manufacturer,omitempty"`
}

type StockOperation string

const (
	StockAdd      StockOperation = "add"
	StockSubtract StockOperation = "subtract"
)

// StockAdjustment is the body of the stock PATCH.
type StockAdjustment struct {
	Quantity  int            `json:"quantity" validate:"required,gt=0"`
	Operation StockOperation `json:"operation" validate:"required,stockop"`
}

// PharmacyStats is the dashboard header.
type PharmacyStats struct {
	PendingPrescriptions int `json:"pendingPrescriptions"`
	DispensedToday       int `json:"dispensedToday"`
	LowStockCount        int `json:"lowStockCount"`
	TotalMedicines       int `json:"totalMedicines"`
}
