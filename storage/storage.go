package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"

	"github.com/ayzaz027-alt/trello-clone/domain"
)

const edmInt64 = "Edm.Int64"

// Tables names the storage tables used by the Store. Empty fields fall back
// to the defaults.
type Tables struct {
	Boards        string
	Lists         string
	Cards         string
	BoardMembers  string
	CardMembers   string
	Labels        string
	CardLabels    string
	Comments      string
	Activities    string
	Users         string
	Notifications string
}

func (t Tables) withDefaults() Tables {
	def := func(v *string, name string) {
		if *v == "" {
			*v = name
		}
	}
	def(&t.Boards, "boards")
	def(&t.Lists, "lists")
	def(&t.Cards, "cards")
	def(&t.BoardMembers, "boardmembers")
	def(&t.CardMembers, "cardmembers")
	def(&t.Labels, "labels")
	def(&t.CardLabels, "cardlabels")
	def(&t.Comments, "comments")
	def(&t.Activities, "activities")
	def(&t.Users, "users")
	def(&t.Notifications, "notifications")
	return t
}

// Names returns the effective table names with defaults applied, in the
// order the provisioning tool creates them.
func (t Tables) Names() []string {
	t = t.withDefaults()
	return []string{
		t.Boards, t.Lists, t.Cards,
		t.BoardMembers, t.CardMembers,
		t.Labels, t.CardLabels,
		t.Comments, t.Activities,
		t.Users, t.Notifications,
	}
}

// Store provides access to the underlying persistence mechanisms. It is the
// single source of truth; the cache and the room registry are rebuildable.
type Store struct {
	boards        *aztables.Client
	lists         *aztables.Client
	cards         *aztables.Client
	boardMembers  *aztables.Client
	cardMembers   *aztables.Client
	labels        *aztables.Client
	cardLabels    *aztables.Client
	comments      *aztables.Client
	activities    *aztables.Client
	users         *aztables.Client
	notifications *aztables.Client
	emailQueue    *azqueue.QueueClient
}

// New creates a Store from the given connection string.
func New(connStr string, tables Tables, emailQueueName string) (*Store, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	t := tables.withDefaults()

	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	eq, err := azqueue.NewQueueClientFromConnectionString(connStr, emailQueueName, &queueClientOptions)
	if err != nil {
		return nil, err
	}

	return &Store{
		boards:        svc.NewClient(t.Boards),
		lists:         svc.NewClient(t.Lists),
		cards:         svc.NewClient(t.Cards),
		boardMembers:  svc.NewClient(t.BoardMembers),
		cardMembers:   svc.NewClient(t.CardMembers),
		labels:        svc.NewClient(t.Labels),
		cardLabels:    svc.NewClient(t.CardLabels),
		comments:      svc.NewClient(t.Comments),
		activities:    svc.NewClient(t.Activities),
		users:         svc.NewClient(t.Users),
		notifications: svc.NewClient(t.Notifications),
		emailQueue:    eq,
	}, nil
}

// mapTableError folds table-service failures into the domain taxonomy: 404 and
// 409 stay client-visible, everything else is a dependency failure.
func mapTableError(err error) error {
	if err == nil {
		return nil
	}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusNotFound:
			return domain.ErrNotFound
		case http.StatusConflict:
			return domain.ErrConflict
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrDependency, err)
}

func addEntity(ctx context.Context, client *aztables.Client, ent any) error {
	data, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	if _, err := client.AddEntity(ctx, data, nil); err != nil {
		return mapTableError(err)
	}
	return nil
}

// mergeEntity applies a partial, single-row atomic update.
func mergeEntity(ctx context.Context, client *aztables.Client, ent any) error {
	data, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	opts := &aztables.UpdateEntityOptions{UpdateMode: aztables.UpdateModeMerge}
	if _, err := client.UpdateEntity(ctx, data, opts); err != nil {
		return mapTableError(err)
	}
	return nil
}

func deleteEntity(ctx context.Context, client *aztables.Client, pk, rk string) error {
	if _, err := client.DeleteEntity(ctx, pk, rk, nil); err != nil {
		return mapTableError(err)
	}
	return nil
}

// queryEntities runs a filtered scan and hands every raw entity to decode.
func queryEntities(ctx context.Context, client *aztables.Client, filter string, top *int32, decode func([]byte) error) error {
	opts := &aztables.ListEntitiesOptions{}
	if filter != "" {
		opts.Filter = &filter
	}
	opts.Top = top
	pager := client.NewListEntitiesPager(opts)
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return mapTableError(err)
		}
		for _, raw := range resp.Entities {
			if err := decode(raw); err != nil {
				return err
			}
		}
	}
	return nil
}

// findByRowKey locates a single entity when only its row key is known. Tables
// here are partitioned by parent id, so lookups by bare id scan with a RowKey
// filter.
func findByRowKey(ctx context.Context, client *aztables.Client, rowKey string, decode func([]byte) error) error {
	found := false
	err := queryEntities(ctx, client, fmt.Sprintf("RowKey eq '%s'", rowKey), nil, func(raw []byte) error {
		found = true
		return decode(raw)
	})
	if err != nil {
		return err
	}
	if !found {
		return domain.ErrNotFound
	}
	return nil
}

// deletePartition removes every row under the given partition key.
func deletePartition(ctx context.Context, client *aztables.Client, pk string) error {
	type keysOnly struct {
		aztables.Entity
	}
	var rowKeys []string
	err := queryEntities(ctx, client, fmt.Sprintf("PartitionKey eq '%s'", pk), nil, func(raw []byte) error {
		var ent keysOnly
		if err := json.Unmarshal(raw, &ent); err != nil {
			return err
		}
		rowKeys = append(rowKeys, ent.RowKey)
		return nil
	})
	if err != nil {
		return err
	}
	for _, rk := range rowKeys {
		if err := deleteEntity(ctx, client, pk, rk); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
	}
	return nil
}
