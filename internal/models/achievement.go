package models

import "time"

type Achievement struct {
	Title       string    `bson:"title" json:"title"`
	Description string    `bson:"description" json:"description"`
	EarnedAt    time.Time `bson:"earned_at" json:"earnedAt"`
	Icon        string    `bson:"icon" json:"icon"`
	Category    string    `bson:"category" json:"category"`
}
