package storage

import (
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
)

// Names carries the table and queue names the service persists into.
type Names struct {
	Publications string
	Tasks        string
	Cases        string
	Credentials  string
	Profiles     string
	RefreshQueue string
}

// Storage provides access to underlying persistence mechanisms.
type Storage struct {
	pubTable     *aztables.Client
	taskTable    *aztables.Client
	caseTable    *aztables.Client
	credTable    *aztables.Client
	profileTable *aztables.Client
	refreshQueue *azqueue.QueueClient
}

// New creates a Storage instance from the given connection string.
func New(connStr string, names Names) (*Storage, error) {
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
	rq, err := azqueue.NewQueueClientFromConnectionString(connStr, names.RefreshQueue, &queueClientOptions)
	if err != nil {
		return nil, err
	}

	return &Storage{
		pubTable:     svc.NewClient(names.Publications),
		taskTable:    svc.NewClient(names.Tasks),
		caseTable:    svc.NewClient(names.Cases),
		credTable:    svc.NewClient(names.Credentials),
		profileTable: svc.NewClient(names.Profiles),
		refreshQueue: rq,
	}, nil
}

// entity holds the key pair written with every table row.
type entity struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
}

const edmDateTime = "Edm.DateTime"
