// dto.go - JSON-представления доменных моделей.
package handlers

import (
	"github.com/ngriffiths19/lunch-planner/internal/domain/kitchen"
	"github.com/ngriffiths19/lunch-planner/internal/domain/model"
)

type menuItemDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Active   bool   `json:"active"`
}

func mapMenuItem(it model.MenuItem) menuItemDTO {
	return menuItemDTO{ID: it.ID, Name: it.Name, Category: it.Category, Active: it.Active}
}

func mapMenuItems(items []model.MenuItem) []menuItemDTO {
	out := make([]menuItemDTO, len(items))
	for i, it := range items {
		out[i] = mapMenuItem(it)
	}
	return out
}

type dayOptionsDTO struct {
	Date    string   `json:"date"`
	ItemIDs []string `json:"itemIds"`
}

type planDayDTO struct {
	Date  string        `json:"date"`
	Items []menuItemDTO `json:"items"`
}

type principalDTO struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

func mapPrincipal(p *model.Principal) *principalDTO {
	if p == nil {
		return nil
	}
	return &principalDTO{ID: p.ID, Email: p.Email, Name: p.Name}
}

type profileDTO struct {
	ID           string  `json:"id"`
	Name         *string `json:"name"`
	Role         string  `json:"role"`
	LocationID   *string `json:"locationId"`
	LunchSession *string `json:"lunchSession"`
}

func mapProfile(p *model.Profile) *profileDTO {
	if p == nil {
		return nil
	}
	return &profileDTO{
		ID:           p.ID,
		Name:         p.Name,
		Role:         p.Role,
		LocationID:   p.LocationID,
		LunchSession: p.LunchSession,
	}
}

type directoryUserDTO struct {
	ID           string  `json:"id"`
	Email        string  `json:"email"`
	Username     string  `json:"username"`
	FirstName    string  `json:"firstName,omitempty"`
	LastName     string  `json:"lastName,omitempty"`
	Enabled      bool    `json:"enabled"`
	Name         *string `json:"name"`
	Role         string  `json:"role"`
	LocationID   *string `json:"locationId"`
	LunchSession *string `json:"lunchSession"`
}

func mapDirectoryUser(u model.DirectoryUser) directoryUserDTO {
	return directoryUserDTO{
		ID:           u.ID,
		Email:        u.Email,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Enabled:      u.Enabled,
		Name:         u.Name,
		Role:         u.Role,
		LocationID:   u.LocationID,
		LunchSession: u.LunchSession,
	}
}

type itemCountDTO struct {
	ItemID string `json:"itemId"`
	Name   string `json:"name"`
	Qty    int    `json:"qty"`
}

type itemRosterDTO struct {
	ItemID string   `json:"itemId"`
	Name   string   `json:"name"`
	People []string `json:"people"`
}

type kitchenSessionDTO struct {
	Session string          `json:"session"`
	Items   []itemCountDTO  `json:"items"`
	Details []itemRosterDTO `json:"details,omitempty"`
}

type kitchenDayDTO struct {
	Date     string              `json:"date"`
	Sessions []kitchenSessionDTO `json:"sessions"`
}

func mapKitchenDays(days []kitchen.Day) []kitchenDayDTO {
	out := make([]kitchenDayDTO, len(days))
	for i, d := range days {
		sessions := make([]kitchenSessionDTO, len(d.Sessions))
		for j, s := range d.Sessions {
			items := make([]itemCountDTO, len(s.Items))
			for k, it := range s.Items {
				items[k] = itemCountDTO{ItemID: it.ItemID, Name: it.Name, Qty: it.Qty}
			}
			var details []itemRosterDTO
			if s.Details != nil {
				details = make([]itemRosterDTO, len(s.Details))
				for k, r := range s.Details {
					details[k] = itemRosterDTO{ItemID: r.ItemID, Name: r.Name, People: r.People}
				}
			}
			sessions[j] = kitchenSessionDTO{Session: s.Session, Items: items, Details: details}
		}
		out[i] = kitchenDayDTO{Date: d.Date, Sessions: sessions}
	}
	return out
}
