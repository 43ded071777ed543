package retail

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MockMetricsSource is a fake warehouse, for use in tests.
type MockMetricsSource struct {
	mu            *sync.RWMutex
	CityList      []CityName
	Metrics       map[string]CityMetrics
	Neighborhoods map[string]NeighborhoodMetrics
	Retailers     map[int64]RetailerMetrics
}

var _ MetricsSource = (*MockMetricsSource)(nil)

func NewMockMetricsSource() MockMetricsSource {
	return MockMetricsSource{
		mu:            &sync.RWMutex{},
		Metrics:       make(map[string]CityMetrics),
		Neighborhoods: make(map[string]NeighborhoodMetrics),
		Retailers:     make(map[int64]RetailerMetrics),
	}
}

func (s *MockMetricsSource) InsertCity(m CityMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CityList = append(s.CityList, CityName{City: m.City})
	s.Metrics[m.City] = m
}

func (s *MockMetricsSource) InsertNeighborhood(city string, m NeighborhoodMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Neighborhoods[city+"/"+m.Name] = m
}

func (s *MockMetricsSource) InsertRetailer(m RetailerMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Retailers[m.SellerID] = m
}

func (s *MockMetricsSource) Cities(ctx context.Context) ([]CityName, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]CityName{}, s.CityList...), nil
}

func (s *MockMetricsSource) CityMetrics(ctx context.Context, city string) (*CityMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.Metrics[city]
	if !ok {
		return nil, ErrCityNotFound
	}
	return &m, nil
}

func (s *MockMetricsSource) NeighborhoodMetrics(ctx context.Context, city, name string) (*NeighborhoodMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.Neighborhoods[city+"/"+name]
	if !ok {
		return nil, ErrNeighborhoodNotFound
	}
	return &m, nil
}

func (s *MockMetricsSource) RetailerMetrics(ctx context.Context, sellerID int64) (*RetailerMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.Retailers[sellerID]
	if !ok {
		return nil, ErrRetailerNotFound
	}
	return &m, nil
}

func (s *MockMetricsSource) SearchRetailers(ctx context.Context, query, city string) ([]RetailerMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []RetailerMetrics{}
	for _, m := range s.Retailers {
		if !strings.Contains(strings.ToLower(m.StoreName), strings.ToLower(query)) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// MockRecordSource is a fake document store, for use in tests.
type MockRecordSource struct {
	mu           *sync.RWMutex
	StateList    []State
	LGAList      []LGA
	BrandList    []Brand
	CategoryList []Category
	Sales        []SalesMetric
}

var _ RecordSource = (*MockRecordSource)(nil)

func NewMockRecordSource() MockRecordSource {
	return MockRecordSource{mu: &sync.RWMutex{}}
}

func paginate[T any](items []T, p PageArgs) *Page[T] {
	total := int64(len(items))
	start := int(p.Skip())
	if start > len(items) {
		start = len(items)
	}
	end := start + p.Size
	if end > len(items) {
		end = len(items)
	}
	return &Page[T]{
		Data:     append([]T{}, items[start:end]...),
		Total:    total,
		Page:     p.Page,
		PageSize: p.Size,
	}
}

func (s *MockRecordSource) States(ctx context.Context, p PageArgs, stateCode string) (*Page[State], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := s.StateList
	if stateCode != "" {
		items = nil
		for _, st := range s.StateList {
			if st.StateCode == stateCode {
				items = append(items, st)
			}
		}
	}
	return paginate(items, p), nil
}

func (s *MockRecordSource) StateByCode(ctx context.Context, code string) (*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.StateList {
		if st.StateCode == code {
			out := st
			return &out, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (s *MockRecordSource) LGAs(ctx context.Context, p PageArgs, stateCode string) (*Page[LGA], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := s.LGAList
	if stateCode != "" {
		items = nil
		for _, l := range s.LGAList {
			if l.StateCode == stateCode {
				items = append(items, l)
			}
		}
	}
	return paginate(items, p), nil
}

func (s *MockRecordSource) LGAByCode(ctx context.Context, code string) (*LGA, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.LGAList {
		if l.LGACode == code {
			out := l
			return &out, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (s *MockRecordSource) Brands(ctx context.Context, p PageArgs, brandName string) (*Page[Brand], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := s.BrandList
	if brandName != "" {
		items = nil
		for _, b := range s.BrandList {
			if b.BrandName == brandName {
				items = append(items, b)
			}
		}
	}
	return paginate(items, p), nil
}

func (s *MockRecordSource) BrandByName(ctx context.Context, name string) (*Brand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.BrandList {
		if b.BrandName == name {
			out := b
			return &out, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (s *MockRecordSource) Categories(ctx context.Context, p PageArgs, category string) (*Page[Category], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := s.CategoryList
	if category != "" {
		items = nil
		for _, c := range s.CategoryList {
			if strings.Contains(strings.ToLower(c.ProductCategory), strings.ToLower(category)) {
				items = append(items, c)
			}
		}
	}
	return paginate(items, p), nil
}

func (s *MockRecordSource) CategoryByName(ctx context.Context, name string) (*Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.CategoryList {
		if c.ProductCategory == name {
			out := c
			return &out, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (s *MockRecordSource) SalesMetrics(ctx context.Context, p PageArgs, f SalesFilter) (*Page[SalesMetric], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	// reference filters are hex ObjectIDs, same contract as the real store
	for _, hex := range []string{f.LGAID, f.StateID, f.BrandID} {
		if hex == "" {
			continue
		}
		if _, err := primitive.ObjectIDFromHex(hex); err != nil {
			return nil, fmt.Errorf("%w: invalid reference %q", ErrInvalidFilter, hex)
		}
	}
	return paginate(s.Sales, p), nil
}
