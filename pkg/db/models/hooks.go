package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Primary keys are filled in application code rather than by a database
// default so inserts behave identically on postgres and on the sqlite
// databases the test suites run against.

func fillID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (u *User) BeforeCreate(*gorm.DB) error       { fillID(&u.ID); return nil }
func (m *Merchant) BeforeCreate(*gorm.DB) error   { fillID(&m.ID); return nil }
func (p *Pack) BeforeCreate(*gorm.DB) error       { fillID(&p.ID); return nil }
func (o *Order) BeforeCreate(*gorm.DB) error      { fillID(&o.ID); return nil }
func (c *Cart) BeforeCreate(*gorm.DB) error       { fillID(&c.ID); return nil }
func (ci *CartItem) BeforeCreate(*gorm.DB) error  { fillID(&ci.ID); return nil }
func (p *Payment) BeforeCreate(*gorm.DB) error    { fillID(&p.ID); return nil }
func (w *WebhookLog) BeforeCreate(*gorm.DB) error { fillID(&w.ID); return nil }
