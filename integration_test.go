package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mkobal/avtowatch/internal/api"
	"mkobal/avtowatch/internal/model"
	"mkobal/avtowatch/internal/scraper"
	"mkobal/avtowatch/services/cache"
	"mkobal/avtowatch/services/notify"
	"mkobal/avtowatch/services/publisher"
	"mkobal/avtowatch/services/store"
	"mkobal/avtowatch/services/worker"
)

const integrationBaseURL = "https://www.avto.net"

// resultsPage renders a search results page with one row per listing.
func resultsPage(listings ...[3]string) string {
	var b bytes.Buffer
	b.WriteString(`<!DOCTYPE html><html><head><title>Rezultati</title></head><body><div class="GO-Results">`)
	for i, l := range listings {
		fmt.Fprintf(&b, `<div class="GO-Results-Row">`+
			`<div class="GO-Results-Naziv"><span>%s</span></div>`+
			`<div class="GO-Results-Data-Top"><table>`+
			`<tr><td>1.registracija</td><td>%s</td></tr>`+
			`<tr><td>Prevoženih</td><td>120000 km</td></tr>`+
			`<tr><td>Menjalnik</td><td>ročni menjalnik</td></tr>`+
			`<tr><td>Motor</td><td>1598 ccm, 85 kW, bencin</td></tr>`+
			`</table></div>`+
			`<div class="GO-Results-Price-TXT-Regular">%s &euro;</div>`+
			`<a class="stretched-link" href="../Ads/details.asp?id=%d"></a>`+
			`</div>`, l[0], l[2], l[1], i+1)
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

// switchableRenderer serves whatever page the test currently pins,
// standing in for the browser at the rendering boundary.
type switchableRenderer struct {
	mu   sync.Mutex
	page string
}

func (r *switchableRenderer) setPage(page string) {
	r.mu.Lock()
	r.page = page
	r.mu.Unlock()
}

func (r *switchableRenderer) Render(_ context.Context, _ scraper.RenderRequest) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.page, nil
}

// newIntegrationEnv wires the real store, extractor, detector, worker
// and dispatcher together; only the renderer and the push transport
// are replaced at their boundaries.
func newIntegrationEnv(t *testing.T) (*worker.Worker, *store.SQLite, *switchableRenderer, *httptest.Server, *[]string) {
	t.Helper()

	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	// A Pushover stand-in recording every delivered message title.
	var mu sync.Mutex
	sent := &[]string{}
	pushover := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		mu.Lock()
		*sent = append(*sent, r.PostFormValue("title"))
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":1}`)
	}))
	t.Cleanup(pushover.Close)

	renderer := &switchableRenderer{}

	selectors, err := scraper.LoadSelectors("")
	require.NoError(t, err)

	sc := scraper.New(renderer, selectors, scraper.Options{
		BaseURL:  integrationBaseURL,
		DelayMin: time.Millisecond,
		DelayMax: 2 * time.Millisecond,
	})

	dispatcher := notify.NewDispatcher(notify.NewPushoverSender(pushover.URL), time.Millisecond)

	w := worker.New(worker.Options{
		Store:      st,
		Scraper:    sc,
		Dispatcher: dispatcher,
		Publisher:  publisher.Noop{},
		Cache:      cache.NewMemoryCache(),
	})

	return w, st, renderer, pushover, sent
}

// TestEndToEndTwoCycleScenario walks the whole pipeline: a user is
// registered through the HTTP front door with notify-on-first off, the
// first cycle seeds the baseline silently, and the second cycle
// notifies exactly once about the one listing that appeared in between.
func TestEndToEndTwoCycleScenario(t *testing.T) {
	w, st, renderer, _, sent := newIntegrationEnv(t)
	ctx := context.Background()

	// Register through the front door, caps and all.
	front := httptest.NewServer(api.New(api.Options{Store: st}).Handler())
	defer front.Close()

	body, err := json.Marshal(map[string]interface{}{
		"user_id":            "user-42",
		"pushover_api_token": "app-token",
		"pushover_user_key":  "user-key",
		"filters": map[string]interface{}{
			"brands":    []string{"Skoda"},
			"price_min": 10000,
			"price_max": 25000,
		},
	})
	require.NoError(t, err)

	resp, err := http.Post(front.URL+"/api/users/register", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Cycle 1: two listings, baseline seeded silently.
	renderer.setPage(resultsPage(
		[3]string{"Škoda Octavia 1.6 TDI", "18.990", "2019"},
		[3]string{"Škoda Fabia 1.0 TSI", "12.500", "2020"},
	))
	report := w.RunCycle(ctx)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, model.OutcomeOK, report.Outcomes[0].Status)
	assert.Equal(t, 2, report.Outcomes[0].Scraped)
	assert.Equal(t, 0, report.Outcomes[0].Notified)
	assert.Empty(t, *sent, "first cycle must stay silent")

	n, err := st.SeenCount(ctx, "user-42")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Cycle 2: same two listings plus one new arrival.
	renderer.setPage(resultsPage(
		[3]string{"Škoda Octavia 1.6 TDI", "18.990", "2019"},
		[3]string{"Škoda Fabia 1.0 TSI", "12.500", "2020"},
		[3]string{"Škoda Superb 2.0 TDI, 1.LASTNIK", "24.900", "2021"},
	))
	report = w.RunCycle(ctx)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, 1, report.Outcomes[0].New)
	assert.Equal(t, 1, report.Outcomes[0].Notified)

	require.Len(t, *sent, 1, "exactly one notification for the one new listing")
	assert.Equal(t, "🚗 Škoda Superb 2.0 TDI, 1.LASTNIK", (*sent)[0])

	n, err = st.SeenCount(ctx, "user-42")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// Cycle 3: nothing changed, nothing sent.
	report = w.RunCycle(ctx)
	assert.Equal(t, 0, report.Outcomes[0].New)
	require.Len(t, *sent, 1)
}

// TestEndToEndCapEnforcedAtTheFrontDoor checks that an over-cap filter
// never reaches the worker.
func TestEndToEndCapEnforcedAtTheFrontDoor(t *testing.T) {
	_, st, _, _, _ := newIntegrationEnv(t)

	front := httptest.NewServer(api.New(api.Options{Store: st}).Handler())
	defer front.Close()

	body, err := json.Marshal(map[string]interface{}{
		"user_id":            "user-43",
		"pushover_api_token": "app-token",
		"pushover_user_key":  "user-key",
		"filters": map[string]interface{}{
			"brands": []string{"Audi", "BMW", "Mercedes-Benz"},
		},
	})
	require.NoError(t, err)

	resp, err := http.Post(front.URL+"/api/users/register", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	users, err := st.ActiveUsers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
}

// TestEndToEndFilterChangeResetsBaseline registers a user, seeds them,
// changes the filters and checks the next cycle announces the fresh
// baseline.
func TestEndToEndFilterChangeResetsBaseline(t *testing.T) {
	w, st, renderer, _, sent := newIntegrationEnv(t)
	ctx := context.Background()

	front := httptest.NewServer(api.New(api.Options{Store: st}).Handler())
	defer front.Close()

	body, err := json.Marshal(map[string]interface{}{
		"user_id":            "user-44",
		"pushover_api_token": "app-token",
		"pushover_user_key":  "user-key",
		"filters":            map[string]interface{}{"brands": []string{"Renault"}},
	})
	require.NoError(t, err)
	resp, err := http.Post(front.URL+"/api/users/register", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	renderer.setPage(resultsPage([3]string{"Renault Clio 1.0 TCe", "13.300", "2022"}))
	w.RunCycle(ctx)
	require.Empty(t, *sent)

	// Update the filters; the seen set resets and the next baseline is
	// announced.
	update, err := json.Marshal(map[string]interface{}{
		"filters": map[string]interface{}{"brands": []string{"Dacia"}},
	})
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPut, front.URL+"/api/users/user-44", bytes.NewReader(update))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	n, err := st.SeenCount(ctx, "user-44")
	require.NoError(t, err)
	assert.Zero(t, n, "a filter change clears the seen set")

	renderer.setPage(resultsPage([3]string{"Dacia Duster 1.3 TCe", "17.990", "2023"}))
	w.RunCycle(ctx)

	require.Len(t, *sent, 1)
	assert.Equal(t, "🚗 Dacia Duster 1.3 TCe", (*sent)[0])
}
