package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/athebyme/listing-sync-platform/internal/domain/models"
	apperrors "github.com/athebyme/listing-sync-platform/pkg/errors"
	"github.com/athebyme/listing-sync-platform/pkg/interfaces"
	"github.com/athebyme/listing-sync-platform/pkg/retry"
	"github.com/patrickmn/go-cache"
	"golang.org/x/oauth2"
)

// Config содержит настройки клиента удаленного каталога
type Config struct {
	BaseURL      string            // базовый URL API, без завершающего слэша
	APIKey       string            // значение заголовка x-api-key
	AccessToken  string            // статический bearer-токен (если TokenSource не задан)
	TokenSource  oauth2.TokenSource // источник bearer-токенов; получение и обновление токена — внешняя забота
	Timeout      time.Duration     // таймаут одного HTTP-запроса
	MaxRetries   int               // максимальное число повторов на уровне запроса
	RetryBackoff time.Duration     // базовая пауза экспоненциального backoff
	TaxonomyTTL  time.Duration     // срок жизни кэша таксономии
}

// Client реализует Port поверх HTTP API каталога.
// Транспортные ошибки и ответы 5xx/429/408 повторяются с экспоненциальным
// backoff; остальные 4xx и ошибки разбора тела не повторяются никогда
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	tokens      oauth2.TokenSource
	retryPolicy retry.Policy
	taxonomy    *cache.Cache
	logger      interfaces.LoggerPort
}

// NewClient создает новый клиент каталога
func NewClient(cfg Config, logger interfaces.LoggerPort) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = time.Second
	}

	taxonomyTTL := cfg.TaxonomyTTL
	if taxonomyTTL <= 0 {
		taxonomyTTL = time.Hour
	}

	tokens := cfg.TokenSource
	if tokens == nil {
		tokens = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken})
	}

	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		tokens:      tokens,
		retryPolicy: retry.Exponential(maxRetries+1, backoff, 2.0, apperrors.IsRetryable),
		taxonomy:    cache.New(taxonomyTTL, 2*taxonomyTTL),
		logger:      logger,
	}
}

// do выполняет один HTTP-запрос с повторами согласно политике клиента.
// Тело запроса сериализуется один раз; out может быть nil для ответов без тела
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("ошибка сериализации тела запроса %s: %w", op, err)
		}
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	return retry.Do(ctx, c.retryPolicy, func(ctx context.Context) error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return apperrors.NewTransport(op, err)
		}

		token, err := c.tokens.Token()
		if err != nil {
			return apperrors.NewTransport(op, fmt.Errorf("ошибка получения токена: %w", err))
		}
		token.SetAuthHeader(req)
		req.Header.Set("x-api-key", c.apiKey)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return apperrors.NewTransport(op, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return apperrors.FromStatus(op, resp.StatusCode,
				fmt.Errorf("каталог вернул ошибку: %s", strings.TrimSpace(string(snippet))))
		}

		if out == nil {
			return nil
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return apperrors.NewData(op, fmt.Errorf("ошибка разбора ответа: %w", err))
		}

		return nil
	})
}

// ListListings возвращает одну страницу листингов магазина
func (c *Client) ListListings(ctx context.Context, shopID int64, stateFilter string, limit, offset int) (int, []models.Listing, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))
	query.Set("includes", "Inventory")
	if stateFilter != "" {
		query.Set("state", stateFilter)
	}

	var resp listingsResponse
	path := fmt.Sprintf("/shops/%d/listings", shopID)
	if err := c.do(ctx, "catalog.list_listings", http.MethodGet, path, query, nil, &resp); err != nil {
		return 0, nil, err
	}

	listings := make([]models.Listing, 0, len(resp.Results))
	for _, dto := range resp.Results {
		listings = append(listings, dto.toDomain())
	}

	return resp.Count, listings, nil
}

// GetListing получает листинг по ID вместе с инвентарем
func (c *Client) GetListing(ctx context.Context, listingID int64) (*models.Listing, error) {
	query := url.Values{}
	query.Set("includes", "Inventory")

	var dto listingDTO
	path := fmt.Sprintf("/listings/%d", listingID)
	if err := c.do(ctx, "catalog.get_listing", http.MethodGet, path, query, nil, &dto); err != nil {
		return nil, err
	}

	listing := dto.toDomain()
	return &listing, nil
}

// CreateListing создает новый листинг и возвращает его с присвоенным ID
func (c *Client) CreateListing(ctx context.Context, shopID int64, listing *models.Listing) (*models.Listing, error) {
	var dto listingDTO
	path := fmt.Sprintf("/shops/%d/listings", shopID)
	if err := c.do(ctx, "catalog.create_listing", http.MethodPost, path, nil, newListingPayload(listing), &dto); err != nil {
		return nil, err
	}

	created := dto.toDomain()
	return &created, nil
}

// UpdateListing обновляет скалярные поля существующего листинга
func (c *Client) UpdateListing(ctx context.Context, shopID int64, listing *models.Listing) error {
	path := fmt.Sprintf("/shops/%d/listings/%d", shopID, listing.ListingID)
	return c.do(ctx, "catalog.update_listing", http.MethodPut, path, nil, newListingPayload(listing), nil)
}

// UpdateInventory заменяет инвентарь листинга
func (c *Client) UpdateInventory(ctx context.Context, listingID int64, products []models.VariantProduct) error {
	path := fmt.Sprintf("/listings/%d/inventory", listingID)
	return c.do(ctx, "catalog.update_inventory", http.MethodPut, path, nil, newInventoryPayload(products), nil)
}

// DeleteListing удаляет листинг
func (c *Client) DeleteListing(ctx context.Context, listingID int64) error {
	path := fmt.Sprintf("/listings/%d", listingID)
	return c.do(ctx, "catalog.delete_listing", http.MethodDelete, path, nil, nil, nil)
}

// ResolveTaxonomyID находит ID узла таксономии по имени (без учета регистра).
// Результат кэшируется, поэтому в пределах запуска дерево таксономии
// запрашивается не более одного раза
func (c *Client) ResolveTaxonomyID(ctx context.Context, name string) (int64, error) {
	cacheKey := "taxonomy:" + strings.ToLower(name)
	if cached, found := c.taxonomy.Get(cacheKey); found {
		return cached.(int64), nil
	}

	var resp taxonomyResponse
	if err := c.do(ctx, "catalog.taxonomy", http.MethodGet, "/seller-taxonomy/nodes", nil, nil, &resp); err != nil {
		return 0, err
	}

	id, found := findTaxonomyNode(resp.Results, name)
	if !found {
		return 0, fmt.Errorf("узел таксономии %q не найден", name)
	}

	c.taxonomy.Set(cacheKey, id, cache.DefaultExpiration)
	return id, nil
}

// findTaxonomyNode ищет узел по имени в дереве таксономии
func findTaxonomyNode(nodes []taxonomyNodeDTO, name string) (int64, bool) {
	for _, node := range nodes {
		if strings.EqualFold(node.Name, name) {
			return node.ID, true
		}
		if id, found := findTaxonomyNode(node.Children, name); found {
			return id, true
		}
	}
	return 0, false
}
