package model

type Customer struct {
	BaseModel
	Name  string `gorm:"type:varchar(255);not null" json:"name"`
	Email string `gorm:"type:varchar(255)" json:"email,omitempty"`
	Phone string `gorm:"type:varchar(30)" json:"phone,omitempty"`
}

type Vendor struct {
	BaseModel
	Name  string `gorm:"type:varchar(255);not null" json:"name"`
	Email string `gorm:"type:varchar(255)" json:"email,omitempty"`
}
