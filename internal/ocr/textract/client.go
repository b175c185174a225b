package textract

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"

	"docscan-backend/internal/ocr"
)

type textractAPI interface {
	DetectDocumentText(ctx context.Context, params *textract.DetectDocumentTextInput, optFns ...func(*textract.Options)) (*textract.DetectDocumentTextOutput, error)
	StartDocumentTextDetection(ctx context.Context, params *textract.StartDocumentTextDetectionInput, optFns ...func(*textract.Options)) (*textract.StartDocumentTextDetectionOutput, error)
	GetDocumentTextDetection(ctx context.Context, params *textract.GetDocumentTextDetectionInput, optFns ...func(*textract.Options)) (*textract.GetDocumentTextDetectionOutput, error)
}

// maxPages guards the result loop against a provider that never stops paging.
const maxPages = 500

// Client implements ocr.Client with Amazon Textract.
type Client struct {
	api textractAPI
}

// New builds a Textract client from a loaded AWS config.
func New(cfg aws.Config) *Client {
	return &Client{api: textract.NewFromConfig(cfg)}
}

// ExtractSync runs DetectDocumentText on in-memory bytes.
func (c *Client) ExtractSync(ctx context.Context, body []byte) (ocr.Result, error) {
	if len(body) == 0 {
		return ocr.Result{}, ocr.Wrap("detect text", errors.New("empty document"))
	}
	out, err := c.api.DetectDocumentText(ctx, &textract.DetectDocumentTextInput{
		Document: &types.Document{Bytes: body},
	})
	if err != nil {
		return ocr.Result{}, ocr.Wrap("detect text", err)
	}
	var acc lineAccumulator
	acc.add(out.Blocks)
	return acc.result(), nil
}

// StartAsync starts a text-detection job on a stored object. The job tag is
// also the client request token, so a replayed upload event returns the
// already-running job instead of starting a second one.
func (c *Client) StartAsync(ctx context.Context, req ocr.AsyncRequest) (string, error) {
	if strings.TrimSpace(req.Bucket) == "" || strings.TrimSpace(req.Key) == "" {
		return "", ocr.Wrap("start job", errors.New("bucket and key are required"))
	}
	tag := ocr.EncodeJobTag(req.UserID, req.DocumentID)
	input := &textract.StartDocumentTextDetectionInput{
		DocumentLocation: &types.DocumentLocation{
			S3Object: &types.S3Object{
				Bucket: aws.String(req.Bucket),
				Name:   aws.String(req.Key),
			},
		},
		JobTag:             aws.String(tag),
		ClientRequestToken: aws.String(tag),
	}
	if req.NotificationTopic != "" {
		input.NotificationChannel = &types.NotificationChannel{
			SNSTopicArn: aws.String(req.NotificationTopic),
			RoleArn:     aws.String(req.ServiceRole),
		}
	}

	out, err := c.api.StartDocumentTextDetection(ctx, input)
	if err != nil {
		return "", ocr.Wrap("start job", err)
	}
	jobID := strings.TrimSpace(aws.ToString(out.JobId))
	if jobID == "" {
		return "", ocr.ErrMissingJobID
	}
	return jobID, nil
}

// GetAsyncResult pages through a finished job's blocks.
func (c *Client) GetAsyncResult(ctx context.Context, jobID string) (ocr.AsyncResult, error) {
	if strings.TrimSpace(jobID) == "" {
		return ocr.AsyncResult{}, ocr.Wrap("get job", errors.New("job id is required"))
	}

	var (
		acc       lineAccumulator
		status    ocr.JobStatus
		nextToken *string
	)
	for page := 0; page < maxPages; page++ {
		out, err := c.api.GetDocumentTextDetection(ctx, &textract.GetDocumentTextDetectionInput{
			JobId:     aws.String(jobID),
			NextToken: nextToken,
		})
		if err != nil {
			return ocr.AsyncResult{}, ocr.Wrap("get job", err)
		}
		status = ocr.JobStatus(out.JobStatus)
		if status != ocr.JobSucceeded && status != ocr.JobPartialSuccess {
			return ocr.AsyncResult{Status: status}, nil
		}
		acc.add(out.Blocks)
		nextToken = out.NextToken
		if aws.ToString(nextToken) == "" {
			break
		}
	}
	return ocr.AsyncResult{Result: acc.result(), Status: status}, nil
}

// lineAccumulator joins LINE blocks and averages their confidence.
type lineAccumulator struct {
	lines []string
	sum   float64
}

func (a *lineAccumulator) add(blocks []types.Block) {
	for _, b := range blocks {
		if b.BlockType != types.BlockTypeLine {
			continue
		}
		a.lines = append(a.lines, aws.ToString(b.Text))
		a.sum += float64(aws.ToFloat32(b.Confidence))
	}
}

func (a *lineAccumulator) result() ocr.Result {
	if len(a.lines) == 0 {
		return ocr.Result{}
	}
	return ocr.Result{
		Text:       strings.Join(a.lines, "\n"),
		Confidence: a.sum / float64(len(a.lines)),
	}
}

var _ ocr.Client = (*Client)(nil)
