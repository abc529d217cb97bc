package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dgallion1/docsum/internal/pathstore"
)

const defaultPathstorePrefix = "checkpoints"

// PathstoreStore keeps records in a remote pathstore under prefix/<taskID>.
type PathstoreStore struct {
	client *pathstore.Client
	prefix string
}

func NewPathstoreStore(baseURL, apiKey, prefix string) *PathstoreStore {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = defaultPathstorePrefix
	}
	return &PathstoreStore{client: pathstore.NewClient(baseURL, apiKey), prefix: prefix}
}

func (s *PathstoreStore) key(taskID string) string {
	return s.prefix + "/" + taskID
}

func (s *PathstoreStore) FindByContent(ctx context.Context, content string) (string, bool, error) {
	id := TaskID(content)
	node, err := s.client.GetNode(ctx, s.key(id))
	if err != nil {
		return id, false, fmt.Errorf("checkpoint: lookup %s: %w", id, err)
	}
	return id, node != nil, nil
}

func (s *PathstoreStore) Load(ctx context.Context, taskID string) (*Record, error) {
	if err := checkTaskID(taskID); err != nil {
		return nil, err
	}
	node, err := s.client.GetNode(ctx, s.key(taskID))
	if err != nil {
		return nil, fmt.Errorf("checkpoint: load %s: %w", taskID, err)
	}
	if node == nil {
		return nil, nil
	}
	return decode(taskID, node.Value)
}

// Save replaces the stored value in a single PUT.
func (s *PathstoreStore) Save(ctx context.Context, r *Record) error {
	data, err := encode(r)
	if err != nil {
		return err
	}
	req := pathstore.NodeRequest{Value: json.RawMessage(data), Source: "docsum"}
	if err := s.client.PutNode(ctx, s.key(r.TaskID), req); err != nil {
		return fmt.Errorf("checkpoint: save %s: %w", r.TaskID, err)
	}
	return nil
}

func (s *PathstoreStore) Delete(ctx context.Context, taskID string) error {
	if err := checkTaskID(taskID); err != nil {
		return err
	}
	if err := s.client.DeleteNode(ctx, s.key(taskID)); err != nil {
		return fmt.Errorf("checkpoint: delete %s: %w", taskID, err)
	}
	return nil
}

func (s *PathstoreStore) List(ctx context.Context) ([]Record, error) {
	nodes, err := s.client.ListChildren(ctx, s.prefix, 0)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list: %w", err)
	}
	records := make([]Record, 0, len(nodes))
	for _, n := range nodes {
		id := n.Key[strings.LastIndex(n.Key, "/")+1:]
		if !ValidTaskID(id) {
			continue
		}
		r, err := decode(id, n.Value)
		if err != nil {
			continue
		}
		records = append(records, *r)
	}
	sortRecords(records)
	return records, nil
}

func (s *PathstoreStore) Close() error {
	s.client.Close()
	return nil
}
