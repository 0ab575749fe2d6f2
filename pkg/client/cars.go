package client

import (
	"context"
	"net/url"
	"strconv"

	"wheelaway/pkg/model"
)

type CarClient struct {
	httpClient *HttpClient
}

func NewCarClient(httpClient *HttpClient) *CarClient {
	return &CarClient{httpClient: httpClient}
}

// CarQuery mirrors the query parameters accepted by GET /api/v1/cars.
type CarQuery struct {
	Category string
	Location string
	MinPrice string
	MaxPrice string
	From     string
	To       string
	OwnerID  string
	Sort     string
	Limit    int
	Offset   int64
}

func (q CarQuery) values() url.Values {
	v := url.Values{}
	set := func(key, value string) {
		if value != "" {
			v.Set(key, value)
		}
	}
	set("category", q.Category)
	set("location", q.Location)
	set("min_price", q.MinPrice)
	set("max_price", q.MaxPrice)
	set("from", q.From)
	set("to", q.To)
	set("owner_id", q.OwnerID)
	set("sort", q.Sort)
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.FormatInt(q.Offset, 10))
	}
	return v
}

func carPath(id string) string {
	return "/api/v1/cars/id/" + url.PathEscape(id)
}

func (c *CarClient) Create(ctx context.Context, body model.CarCreate) (*model.Car, error) {
	resp, err := c.httpClient.POST(ctx, "/api/v1/cars", body)
	if err != nil {
		return nil, err
	}
	return decodeData[model.Car](resp)
}

func (c *CarClient) Search(ctx context.Context, q CarQuery) ([]*model.Car, *Metadata, error) {
	path := "/api/v1/cars"
	if enc := q.values().Encode(); enc != "" {
		path += "?" + enc
	}
	resp, err := c.httpClient.GET(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	return decodePage[*model.Car](resp)
}

func (c *CarClient) GetByID(ctx context.Context, id string) (*model.Car, error) {
	resp, err := c.httpClient.GET(ctx, carPath(id))
	if err != nil {
		return nil, err
	}
	return decodeData[model.Car](resp)
}

func (c *CarClient) GetWindow(ctx context.Context, id string) (*model.AvailabilityWindow, error) {
	resp, err := c.httpClient.GET(ctx, carPath(id)+"/window")
	if err != nil {
		return nil, err
	}
	return decodeData[model.AvailabilityWindow](resp)
}

func (c *CarClient) Update(ctx context.Context, id string, body model.CarUpdate) (*model.Car, error) {
	resp, err := c.httpClient.PATCH(ctx, carPath(id), body)
	if err != nil {
		return nil, err
	}
	return decodeData[model.Car](resp)
}

func (c *CarClient) UpdateWindow(ctx context.Context, id string, body model.WindowUpdate) (*model.AvailabilityWindow, error) {
	resp, err := c.httpClient.PATCH(ctx, carPath(id)+"/window", body)
	if err != nil {
		return nil, err
	}
	return decodeData[model.AvailabilityWindow](resp)
}

func (c *CarClient) Verify(ctx context.Context, id string) (*model.Car, error) {
	resp, err := c.httpClient.PATCH(ctx, carPath(id)+"/verify", struct{}{})
	if err != nil {
		return nil, err
	}
	return decodeData[model.Car](resp)
}

func (c *CarClient) Delete(ctx context.Context, id string) error {
	resp, err := c.httpClient.DELETE(ctx, carPath(id))
	if err != nil {
		return err
	}
	return resp.Err()
}
