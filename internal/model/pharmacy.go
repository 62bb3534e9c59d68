package model

type SortKey string

const (
	SortByName     SortKey = "name"
	SortByStock    SortKey = "stock"
	SortByPrice    SortKey = "price"
	SortByCategory SortKey = "category"
)

// InventoryQuery drives the inventory table.
type InventoryQuery struct {
	Search   string  `form:"search" json:"search"`
	Category string  `form:"category" json:"category"`
	SortBy   SortKey `form:"sort" json:"sort"`
}

// Dashboard is the pharmacy view after a full load.
type Dashboard struct {
	Stats                PharmacyStats  `json:"stats"`
	PendingPrescriptions []Prescription `json:"pendingPrescriptions"`
	Medicines            []Medicine     `json:"medicines"`
	LowStock             []Medicine     `json:"lowStock"`
	Query                InventoryQuery `json:"query"`
	Categories           []string       `json:"categories"`
	Forms                []string       `json:"forms"`
}

// StockPreview is the "new stock" line of the adjust-stock modal.
type StockPreview struct {
	MedicineID string         `json:"medicineId"`
	Current    int            `json:"current"`
	Quantity   int            `json:"quantity"`
	Operation  StockOperation `json:"operation"`
	NewStock   int            `json:"newStock"`
}

type ScanState string

const (
	ScanScanning ScanState = "scanning"
	ScanFound    ScanState = "found"
	ScanFailed   ScanState = "failed"
)

// ScanResult is reported for every submitted camera frame.
type ScanResult struct {
	State          ScanState     `json:"state"`
	PrescriptionID string        `json:"prescriptionId,omitempty"`
	Prescription   *Prescription `json:"prescription,omitempty"`
	// Pending is the view's pending list after the merge.
	Pending []Prescription `json:"pending,omitempty"`
	Message string         `json:"message,omitempty"`
}
