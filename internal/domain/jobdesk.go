package domain

import "time"

// DefaultJobdeskColor is shown for permissions whose jobdesk is no longer in the catalog.
const DefaultJobdeskColor = "#607D8B"

// Jobdesk is a named work station. The name is the exclusivity key for
// permissions and is unique across the catalog.
type Jobdesk struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DefaultJobdesks is the catalog a fresh installation starts with.
func DefaultJobdesks() []Jobdesk {
	return []Jobdesk{
		{Name: "Operator", Description: "Operator produksi", Color: "#4CAF50"},
		{Name: "Quality Control", Description: "Penjamin kualitas", Color: "#2196F3"},
		{Name: "Maintenance", Description: "Pemeliharaan mesin", Color: "#FF9800"},
		{Name: "Packing", Description: "Pengemasan produk", Color: "#9C27B0"},
		{Name: "Gudang", Description: "Pengelolaan gudang", Color: "#795548"},
		{Name: "Logistik", Description: "Distribusi produk", Color: "#607D8B"},
		{Name: "Admin", Description: "Administrasi", Color: "#E91E63"},
		{Name: "Supervisor", Description: "Pengawas produksi", Color: "#3F51B5"},
	}
}
