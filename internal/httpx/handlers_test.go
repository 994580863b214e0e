package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-groupbuy/internal/auth"
	"github.com/ariefcatur/go-groupbuy/internal/groupbuy"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
)

type productResp struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Price           decimal.Decimal `json:"price"`
	GroupSize       int             `json:"group_size"`
	CurrentOrders   int             `json:"current_orders"`
	Status          string          `json:"status"`
	SlotsLeft       int             `json:"slots_left"`
	ProgressPercent int             `json:"progress_percent"`
}

type joinResp struct {
	Order struct {
		ID         string          `json:"id"`
		Quantity   int             `json:"quantity"`
		TotalPrice decimal.Decimal `json:"total_price"`
		Status     string          `json:"status"`
	} `json:"order"`
	Product    productResp `json:"product"`
	Idempotent bool        `json:"idempotent"`
}

type errResp struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type APITestSuite struct {
	suite.Suite
	srv     *httptest.Server
	repo    *groupbuy.MemoryRepository
	tracker *groupbuy.Tracker
	token   string
}

type memIdempotency struct {
	mu sync.Mutex
	m  map[string]string
}

func (s *memIdempotency) Reserve(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[key]; ok {
		return false, nil
	}
	s.m[key] = ""
	return true, nil
}

func (s *memIdempotency) Lookup(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok && v == "", nil
}

func (s *memIdempotency) Remember(_ context.Context, key, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = orderID
	return nil
}

func (s *memIdempotency) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

func (s *APITestSuite) SetupTest() {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	s.Require().NoError(err)
	authSvc := &auth.Service{
		AdminEmail:   "admin@groupbuy.test",
		PasswordHash: hash,
		Secret:       []byte("test-secret"),
		TTL:          time.Hour,
	}
	s.repo = groupbuy.NewMemoryRepository()
	s.tracker = &groupbuy.Tracker{Repo: s.repo, ServiceName: "test"}

	r := NewRouter(nil)
	Mount(r, s.tracker, authSvc, nil)
	s.srv = httptest.NewServer(r)

	sess, err := authSvc.Login(context.Background(), "admin@groupbuy.test", "s3cret")
	s.Require().NoError(err)
	s.token = sess.Token
}

func (s *APITestSuite) TearDownTest() {
	s.srv.Close()
}

func (s *APITestSuite) do(method, path string, body any, headers map[string]string, out any) int {
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		s.Require().NoError(err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, rd)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode != http.StatusNoContent {
		s.Require().NoError(json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (s *APITestSuite) admin() map[string]string {
	return map[string]string{"Authorization": "Bearer " + s.token}
}

func (s *APITestSuite) createProduct(name string, price, groupSize int) productResp {
	var p productResp
	code := s.do(http.MethodPost, "/products", map[string]any{
		"name": name, "price": price, "group_size": groupSize,
	}, s.admin(), &p)
	s.Require().Equal(http.StatusCreated, code)
	return p
}

func (s *APITestSuite) TestHealthz() {
	resp, err := http.Get(s.srv.URL + "/healthz")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *APITestSuite) TestLogin() {
	var sess auth.Session
	code := s.do(http.MethodPost, "/admin/login", LoginReq{Email: "admin@groupbuy.test", Password: "s3cret"}, nil, &sess)
	s.Equal(http.StatusOK, code)
	s.NotEmpty(sess.Token)

	var e errResp
	code = s.do(http.MethodPost, "/admin/login", LoginReq{Email: "admin@groupbuy.test", Password: "wrong"}, nil, &e)
	s.Equal(http.StatusUnauthorized, code)
	s.Equal("invalid_credentials", e.Code)

	code = s.do(http.MethodPost, "/admin/login", LoginReq{Email: "admin@groupbuy.test"}, nil, &e)
	s.Equal(http.StatusBadRequest, code)
}

func (s *APITestSuite) TestAdminRoutesRequireToken() {
	var e errResp
	code := s.do(http.MethodPost, "/products", map[string]any{"name": "Sugar", "price": 280, "group_size": 4}, nil, &e)
	s.Equal(http.StatusUnauthorized, code)

	list := []productResp{}
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/products", nil, nil, &list))
	s.Empty(list)
}

func (s *APITestSuite) TestCreateProductAppearsInListing() {
	p := s.createProduct("Sugar", 280, 4)
	s.Equal(0, p.CurrentOrders)
	s.Equal("active", p.Status)
	s.Equal(4, p.SlotsLeft)

	var list []productResp
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/products", nil, nil, &list))
	s.Require().Len(list, 1)
	s.Equal("Sugar", list[0].Name)
	s.True(decimal.NewFromInt(280).Equal(list[0].Price))
	s.Equal("active", list[0].Status)
}

func (s *APITestSuite) TestCreateProductValidation() {
	var e errResp
	code := s.do(http.MethodPost, "/products", map[string]any{"name": "Sugar", "price": 280, "group_size": 1}, s.admin(), &e)
	s.Equal(http.StatusBadRequest, code)
	s.Equal("validation_failed", e.Code)

	code = s.do(http.MethodPost, "/products", map[string]any{"name": "Sugar", "price": 0, "group_size": 4}, s.admin(), &e)
	s.Equal(http.StatusBadRequest, code)
}

func (s *APITestSuite) TestJoinUntilCompleted() {
	p := s.createProduct("Premium Rice 25kg", 450, 2)

	var res joinResp
	code := s.do(http.MethodPost, "/products/"+p.ID+"/orders", map[string]any{"vendor_id": "v1", "quantity": 3}, nil, &res)
	s.Require().Equal(http.StatusCreated, code)
	s.Equal(1, res.Product.CurrentOrders)
	s.Equal("active", res.Product.Status)
	s.True(decimal.NewFromInt(1350).Equal(res.Order.TotalPrice))
	s.Equal("waiting", res.Order.Status)

	code = s.do(http.MethodPost, "/products/"+p.ID+"/orders", map[string]any{"vendor_id": "v2"}, nil, &res)
	s.Require().Equal(http.StatusCreated, code)
	s.Equal(1, res.Order.Quantity)
	s.Equal("completed", res.Product.Status)
	s.Equal(100, res.Product.ProgressPercent)

	var e errResp
	code = s.do(http.MethodPost, "/products/"+p.ID+"/orders", map[string]any{"vendor_id": "v3", "quantity": 1}, nil, &e)
	s.Equal(http.StatusConflict, code)
	s.Equal("capacity_exceeded", e.Code)

	var got productResp
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/products/"+p.ID, nil, nil, &got))
	s.Equal(2, got.CurrentOrders)
}

func (s *APITestSuite) TestJoinErrors() {
	p := s.createProduct("Sugar 50kg", 280, 4)

	var e errResp
	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/products/"+p.ID+"/orders", map[string]any{"quantity": 0}, nil, &e))
	s.Equal(http.StatusNotFound, s.do(http.MethodPost, "/products/nope/orders", map[string]any{"quantity": 1}, nil, &e))
	s.Equal("not_found", e.Code)
}

func (s *APITestSuite) TestConcurrentJoinsOverHTTP() {
	p := s.createProduct("Sugar 50kg", 280, 5)
	for i := 0; i < 4; i++ {
		s.Require().Equal(http.StatusCreated, s.do(http.MethodPost, "/products/"+p.ID+"/orders", map[string]any{"quantity": 1}, nil, &joinResp{}))
	}

	codes := make(chan int, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, _ := json.Marshal(map[string]any{"quantity": 1})
			resp, err := http.Post(s.srv.URL+"/products/"+p.ID+"/orders", "application/json", bytes.NewReader(b))
			if err != nil {
				codes <- 0
				return
			}
			resp.Body.Close()
			codes <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(codes)

	counts := map[int]int{}
	for c := range codes {
		counts[c]++
	}
	s.Equal(1, counts[http.StatusCreated])
	s.Equal(1, counts[http.StatusConflict])
}

func (s *APITestSuite) TestUpdateAndDeleteProduct() {
	p := s.createProduct("Rice", 450, 5)

	var up productResp
	code := s.do(http.MethodPut, "/products/"+p.ID, map[string]any{"name": "Rice 25kg", "price": "399.50", "group_size": 6}, s.admin(), &up)
	s.Require().Equal(http.StatusOK, code)
	s.Equal("Rice 25kg", up.Name)
	s.True(decimal.RequireFromString("399.5").Equal(up.Price))
	s.Equal(6, up.GroupSize)

	var e errResp
	s.Equal(http.StatusNotFound, s.do(http.MethodPut, "/products/nope", map[string]any{"name": "x", "price": 1, "group_size": 2}, s.admin(), &e))

	s.Equal(http.StatusNoContent, s.do(http.MethodDelete, "/products/"+p.ID, nil, s.admin(), nil))
	s.Equal(http.StatusNotFound, s.do(http.MethodDelete, "/products/"+p.ID, nil, s.admin(), &e))
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/products/"+p.ID, nil, nil, &e))
}

func (s *APITestSuite) TestQuote() {
	p := s.createProduct("Rice", 450, 5)

	var q struct {
		Total    decimal.Decimal `json:"total"`
		Quantity int             `json:"quantity"`
	}
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/products/"+p.ID+"/quote?quantity=4", nil, nil, &q))
	s.True(decimal.NewFromInt(1800).Equal(q.Total))
	s.Equal(4, q.Quantity)

	var e errResp
	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/products/"+p.ID+"/quote?quantity=abc", nil, nil, &e))
	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/products/"+p.ID+"/quote?quantity=0", nil, nil, &e))
	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/products/"+p.ID+"/quote?quantity=-3", nil, nil, &e))
	s.Equal("validation_failed", e.Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/products/"+p.ID+"/quote?quantity=1.5", nil, nil, &e))
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/products/nope/quote?quantity=2", nil, nil, &e))
}

func (s *APITestSuite) TestUpdateBelowCurrentOrdersIsRejected() {
	p := s.createProduct("Rice", 450, 4)
	for i := 0; i < 3; i++ {
		s.Require().Equal(http.StatusCreated, s.do(http.MethodPost, "/products/"+p.ID+"/orders", map[string]any{"quantity": 1}, nil, &joinResp{}))
	}

	var e errResp
	code := s.do(http.MethodPut, "/products/"+p.ID, map[string]any{"name": "Rice", "price": 450, "group_size": 2}, s.admin(), &e)
	s.Equal(http.StatusBadRequest, code)
	s.Equal("validation_failed", e.Code)

	code = s.do(http.MethodPut, "/products/"+p.ID, map[string]any{"name": "Rice", "price": "1.005", "group_size": 4}, s.admin(), &e)
	s.Equal(http.StatusBadRequest, code)
	s.Equal("validation_failed", e.Code)

	var got productResp
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/products/"+p.ID, nil, nil, &got))
	s.Equal(4, got.GroupSize)
	s.Equal(3, got.CurrentOrders)
}

func (s *APITestSuite) TestIdempotencyKeyReplayAndReuse() {
	s.tracker.Idempotency = &memIdempotency{m: map[string]string{}}
	a := s.createProduct("Rice", 450, 5)
	b := s.createProduct("Sugar", 280, 5)
	headers := map[string]string{"Idempotency-Key": "vendor-1-try"}

	var first, again joinResp
	s.Require().Equal(http.StatusCreated, s.do(http.MethodPost, "/products/"+a.ID+"/orders", map[string]any{"quantity": 1}, headers, &first))
	s.Equal(http.StatusOK, s.do(http.MethodPost, "/products/"+a.ID+"/orders", map[string]any{"quantity": 1}, headers, &again))
	s.True(again.Idempotent)
	s.Equal(first.Order.ID, again.Order.ID)

	var e errResp
	s.Equal(http.StatusConflict, s.do(http.MethodPost, "/products/"+b.ID+"/orders", map[string]any{"quantity": 1}, headers, &e))
	s.Equal("idempotency_conflict", e.Code)

	var got productResp
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/products/"+b.ID, nil, nil, &got))
	s.Equal(0, got.CurrentOrders)
}

func (s *APITestSuite) TestIdempotencyKeyWithoutStore() {
	p := s.createProduct("Rice", 450, 5)

	headers := map[string]string{"Idempotency-Key": "abc"}
	var first joinResp
	s.Equal(http.StatusCreated, s.do(http.MethodPost, "/products/"+p.ID+"/orders", map[string]any{"quantity": 1}, headers, &first))
	// no idempotency store configured: the key is ignored
	var second joinResp
	s.Equal(http.StatusCreated, s.do(http.MethodPost, "/products/"+p.ID+"/orders", map[string]any{"quantity": 1}, headers, &second))
	s.NotEqual(first.Order.ID, second.Order.ID)
}

func (s *APITestSuite) TestMyOrdersAndDelivery() {
	p := s.createProduct("Rice", 450, 2)
	var j1, j2 joinResp
	s.Require().Equal(http.StatusCreated, s.do(http.MethodPost, "/products/"+p.ID+"/orders", map[string]any{"vendor_id": "v1", "quantity": 2}, nil, &j1))
	s.Require().Equal(http.StatusCreated, s.do(http.MethodPost, "/products/"+p.ID+"/orders", map[string]any{"vendor_id": "v2", "quantity": 1}, nil, &j2))

	var mine []struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/orders?vendor_id=v1", nil, nil, &mine))
	s.Require().Len(mine, 1)
	s.Equal(j1.Order.ID, mine[0].ID)

	var e errResp
	s.Equal(http.StatusConflict, s.do(http.MethodPost, "/orders/"+j1.Order.ID+"/deliver", nil, s.admin(), &e))
	s.Equal("invalid_transition", e.Code)

	_, err := s.repo.ConfirmOrders(context.Background(), p.ID)
	s.Require().NoError(err)

	var delivered struct {
		Status string `json:"status"`
	}
	s.Equal(http.StatusOK, s.do(http.MethodPost, "/orders/"+j1.Order.ID+"/deliver", nil, s.admin(), &delivered))
	s.Equal("delivered", delivered.Status)
	s.Equal(http.StatusUnauthorized, s.do(http.MethodPost, "/orders/"+j2.Order.ID+"/deliver", nil, nil, &e))
}

func TestAPITestSuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}
