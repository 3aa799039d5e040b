package client

import (
	"context"
	"net/url"
	"strconv"

	"github.com/erazemk/oprema/internal/barcode"
	"github.com/erazemk/oprema/internal/model"
)

const checkInOutPath = "/api/checkinout"

// User is a typeahead match.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullname"`
}

// Label is the name shown in pickers.
func (u User) Label() string {
	if u.FullName == "" {
		return u.Username
	}
	return u.FullName + " (" + u.Username + ")"
}

type itemResponse struct {
	Success bool             `json:"success"`
	Item    model.ItemDetail `json:"item"`
}

// SearchUsers returns users whose username or full name contains query.
func (c *Client) SearchUsers(ctx context.Context, query string) ([]User, error) {
	var resp struct {
		Users []User `json:"users"`
	}
	err := c.postForm(ctx, checkInOutPath, url.Values{"action": {"search_users"}, "query": {query}}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Users, nil
}

// Locations lists the places items can be transferred to.
func (c *Client) Locations(ctx context.Context) ([]model.Holder, error) {
	var resp struct {
		Locations []model.Holder `json:"locations"`
	}
	if err := c.postForm(ctx, checkInOutPath, url.Values{"action": {"get_locations"}}, &resp); err != nil {
		return nil, err
	}
	return resp.Locations, nil
}

// Assign checks an item out to a user.
func (c *Client) Assign(ctx context.Context, uuid string, userID int64) (*model.ItemDetail, error) {
	return c.updateAssignment(ctx, uuid, url.Values{
		"assignment_type": {"user"},
		"user_id":         {strconv.FormatInt(userID, 10)},
	})
}

// Transfer moves an item to a location.
func (c *Client) Transfer(ctx context.Context, uuid string, locationID int64) (*model.ItemDetail, error) {
	return c.updateAssignment(ctx, uuid, url.Values{
		"assignment_type": {"location"},
		"location_id":     {strconv.FormatInt(locationID, 10)},
	})
}

// Unassign checks an item back in.
func (c *Client) Unassign(ctx context.Context, uuid string) (*model.ItemDetail, error) {
	return c.updateAssignment(ctx, uuid, url.Values{"assignment_type": {"unassign"}})
}

func (c *Client) updateAssignment(ctx context.Context, uuid string, values url.Values) (*model.ItemDetail, error) {
	uuid = barcode.Clean(uuid)
	release, err := c.guard("assignment:" + uuid)
	if err != nil {
		return nil, err
	}
	defer release()

	values.Set("action", "update_assignment")
	values.Set("uuid", uuid)
	var resp itemResponse
	if err := c.postForm(ctx, checkInOutPath, values, &resp); err != nil {
		return nil, err
	}
	return &resp.Item, nil
}

// SaveNotes replaces an item's notes.
func (c *Client) SaveNotes(ctx context.Context, uuid, notes string) (*model.ItemDetail, error) {
	uuid = barcode.Clean(uuid)
	release, err := c.guard("notes:" + uuid)
	if err != nil {
		return nil, err
	}
	defer release()

	var resp itemResponse
	values := url.Values{"action": {"update_notes"}, "uuid": {uuid}, "notes": {notes}}
	if err := c.postForm(ctx, checkInOutPath, values, &resp); err != nil {
		return nil, err
	}
	return &resp.Item, nil
}
