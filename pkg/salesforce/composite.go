package salesforce

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
)

// maxBatchSize is the Salesforce Collections API limit per request.
const maxBatchSize = 200

// BulkCreateTasks splits tasks into batches of 200 (SF Collections API limit)
// and sends them via InsertCollection. Results are returned in input order;
// on error the results of completed batches are returned with it.
func BulkCreateTasks(ctx context.Context, c Client, tasks []Task) ([]CollectionResult, error) {
	if len(tasks) == 0 {
		return nil, nil
	}

	var allResults []CollectionResult

	for start := 0; start < len(tasks); start += maxBatchSize {
		end := min(start+maxBatchSize, len(tasks))
		batch := tasks[start:end]

		records := make([]map[string]any, len(batch))
		for i, t := range batch {
			if t.Subject == "" {
				return allResults, eris.New(fmt.Sprintf("sf: task %d Subject is required", start+i))
			}
			records[i] = t.fields()
		}

		results, err := c.InsertCollection(ctx, "Task", records)
		if err != nil {
			return allResults, eris.Wrap(err, fmt.Sprintf("sf: bulk create tasks batch %d-%d", start, end))
		}
		allResults = append(allResults, results...)
	}

	return allResults, nil
}
