package syncer

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"course-authoring/internal/domain"
	"course-authoring/internal/httpx"
	"course-authoring/internal/logger"
)

// Watch streams course_updated events for courseID to fn until ctx is
// canceled or the server closes the stream. A clean close returns nil.
func (c *Client) Watch(ctx context.Context, courseID string, fn func(domain.PushEvent)) error {
	endpoint := c.baseURL + "/courses/" + url.PathEscape(courseID) + "/events"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set(UserHeader, c.userID)

	// The configured client's timeout would cut the stream.
	stream := &http.Client{Transport: c.httpClient.Transport}
	resp, err := stream.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return classify(&httpx.NetworkError{Attempts: 1, Err: err})
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return classify(&httpx.HTTPError{
			Method:     http.MethodGet,
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Body:       body,
		})
	}

	var (
		event string
		data  strings.Builder
	)
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if event == domain.EventCourseUpdated && data.Len() > 0 {
				var evt domain.PushEvent
				if err := json.Unmarshal([]byte(data.String()), &evt); err != nil {
					logger.Warn("Ignoring malformed course event",
						slog.String("course_id", courseID),
						slog.String("error", err.Error()))
				} else {
					fn(evt)
				}
			}
			event = ""
			data.Reset()
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			event = value
		case "data":
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(value)
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := scanner.Err(); err != nil {
		return classify(&httpx.NetworkError{Attempts: 1, Err: err})
	}
	return nil
}
