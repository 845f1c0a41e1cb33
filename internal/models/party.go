package models

import "time"

// PartyKind distinguishes customers from guarantors in the shared person registry
type PartyKind string

const (
	PartyKindCustomer  PartyKind = "customer"
	PartyKindGuarantor PartyKind = "guarantor"
)

// Party is the local projection of a person owned by the customer registry
type Party struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Kind       PartyKind `gorm:"size:20;not null;index" json:"kind"`
	Name       string    `gorm:"not null" json:"name"`
	Phone      string    `gorm:"size:30" json:"phone"`
	DocumentID string    `gorm:"size:40;index" json:"document_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName specifies the table name for Party
func (Party) TableName() string {
	return "parties"
}

func (p *Party) IsCustomer() bool {
	return p.Kind == PartyKindCustomer
}
