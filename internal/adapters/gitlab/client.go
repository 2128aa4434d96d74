/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package gitlab

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sioXD/GitLab-TimeTool/internal/config"
	"github.com/sioXD/GitLab-TimeTool/internal/domain"
)

const epicQuery = `query EpicTree($groupPath: ID!, $epicIid: ID!, $after: String, $childAfter: String) {
  group(fullPath: $groupPath) {
    epic(iid: $epicIid) {
      iid
      title
      children(first: 100, after: $childAfter) {
        pageInfo { hasNextPage endCursor }
        nodes { iid }
      }
      issues(first: 100, after: $after) {
        pageInfo { hasNextPage endCursor }
        nodes {
          iid
          title
          createdAt
          state
          timeEstimate
          totalTimeSpent
          labels { nodes { title } }
          timelogs(first: 100) {
            pageInfo { hasNextPage }
            nodes {
              timeSpent
              spentAt
              user { username name }
            }
          }
        }
      }
    }
  }
}`

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     zerolog.Logger
	backoff time.Duration
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
	return &Client{
		baseURL: cfg.GitLabURL,
		token:   cfg.GitLabToken,
		http:    &http.Client{Timeout: cfg.HTTPTimeout},
		log:     log,
		backoff: 300 * time.Millisecond,
	}
}

type pageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

type epicNode struct {
	IID      string `json:"iid"`
	Title    string `json:"title"`
	Children struct {
		PageInfo pageInfo `json:"pageInfo"`
		Nodes    []struct {
			IID string `json:"iid"`
		} `json:"nodes"`
	} `json:"children"`
	Issues struct {
		PageInfo pageInfo    `json:"pageInfo"`
		Nodes    []issueNode `json:"nodes"`
	} `json:"issues"`
}

type issueNode struct {
	IID            string   `json:"iid"`
	Title          string   `json:"title"`
	CreatedAt      *string  `json:"createdAt"`
	State          string   `json:"state"`
	TimeEstimate   *float64 `json:"timeEstimate"`
	TotalTimeSpent *float64 `json:"totalTimeSpent"`
	Labels         struct {
		Nodes []struct {
			Title string `json:"title"`
		} `json:"nodes"`
	} `json:"labels"`
	Timelogs struct {
		PageInfo pageInfo `json:"pageInfo"`
		Nodes    []struct {
			TimeSpent float64 `json:"timeSpent"`
			SpentAt   string  `json:"spentAt"`
			User      struct {
				Username string `json:"username"`
				Name     string `json:"name"`
			} `json:"user"`
		} `json:"nodes"`
	} `json:"timelogs"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type epicResponse struct {
	Data struct {
		Group *struct {
			Epic *epicNode `json:"epic"`
		} `json:"group"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// FetchEpic loads one epic with all of its issues and child epics,
// following both cursors until their last page.
func (c *Client) FetchEpic(ctx context.Context, groupPath, epicID string) (*domain.EpicRecord, error) {
	var rec *domain.EpicRecord
	var after, childAfter *string
	var issuesDone, childrenDone bool
	for {
		vars := map[string]any{"groupPath": groupPath, "epicIid": epicID, "after": after, "childAfter": childAfter}
		var out epicResponse
		if err := c.doJSON(ctx, map[string]any{"query": epicQuery, "variables": vars}, &out); err != nil {
			return nil, err
		}
		if len(out.Errors) > 0 {
			msgs := make([]string, 0, len(out.Errors))
			for _, e := range out.Errors {
				msgs = append(msgs, e.Message)
			}
			return nil, fmt.Errorf("gitlab graphql: %s", strings.Join(msgs, "; "))
		}
		if out.Data.Group == nil || out.Data.Group.Epic == nil {
			return nil, fmt.Errorf("gitlab: epic %s not found in group %s", epicID, groupPath)
		}
		e := out.Data.Group.Epic
		if rec == nil {
			rec = &domain.EpicRecord{ID: e.IID, Title: e.Title}
		}
		if !childrenDone {
			for _, ch := range e.Children.Nodes {
				rec.ChildIDs = append(rec.ChildIDs, ch.IID)
			}
			childrenDone, childAfter = nextPage(e.Children.PageInfo, childAfter)
		}
		if !issuesDone {
			for _, n := range e.Issues.Nodes {
				rec.Issues = append(rec.Issues, c.issueRecord(n))
			}
			issuesDone, after = nextPage(e.Issues.PageInfo, after)
		}
		if issuesDone && childrenDone {
			break
		}
	}
	c.log.Debug().Str("epic", rec.ID).Int("issues", len(rec.Issues)).Int("children", len(rec.ChildIDs)).Msg("gitlab epic fetched")
	return rec, nil
}

// nextPage returns the cursor past p. Once a connection is exhausted its
// cursor stays at the end so later requests get an empty page for it.
func nextPage(p pageInfo, cur *string) (bool, *string) {
	if p.EndCursor == "" {
		return true, cur
	}
	next := p.EndCursor
	return !p.HasNextPage, &next
}

func (c *Client) issueRecord(n issueNode) domain.IssueRecord {
	ir := domain.IssueRecord{ID: n.IID, Title: n.Title, State: n.State}
	if n.CreatedAt != nil {
		ir.CreatedAt = *n.CreatedAt
	}
	if n.TimeEstimate != nil {
		ir.EstimateSeconds = *n.TimeEstimate
	}
	if n.TotalTimeSpent != nil {
		ir.TotalSpentSeconds = *n.TotalTimeSpent
	}
	for _, l := range n.Labels.Nodes {
		ir.Labels = append(ir.Labels, l.Title)
	}
	for _, tl := range n.Timelogs.Nodes {
		name := tl.User.Name
		if name == "" {
			name = tl.User.Username
		}
		ir.Timelogs = append(ir.Timelogs, domain.TimelogRecord{Hours: tl.TimeSpent / 3600, SpentAt: tl.SpentAt, UserName: name})
	}
	if n.Timelogs.PageInfo.HasNextPage {
		c.log.Warn().Str("issue", n.IID).Int("kept", len(n.Timelogs.Nodes)).Msg("issue has more timelogs than one page")
	}
	return ir
}

func (c *Client) doJSON(ctx context.Context, body any, out any) error {
	if c.baseURL == "" {
		return errors.New("gitlab: empty baseURL")
	}
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	u := strings.TrimRight(c.baseURL, "/") + "/api/graphql"
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
		} else {
			done, err := decodeResponse(resp, out)
			if done {
				return err
			}
			lastErr = err
		}
		if attempt == 2 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.backoff * time.Duration(1<<attempt)):
		}
	}
	return lastErr
}

// decodeResponse reports done=false only for statuses worth retrying.
func decodeResponse(resp *http.Response, out any) (bool, error) {
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("gitlab api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
		return !(resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500), err
	}
	return true, json.NewDecoder(resp.Body).Decode(out)
}
