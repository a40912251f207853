package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"flashbot-backend/internal/llm"
	"flashbot-backend/internal/model"
	"flashbot-backend/internal/orders"
)

// Fixed reply texts. The widget audience is Spanish-speaking.
const (
	msgEmptyQuery = "Hola, ¿en qué puedo ayudarte? Puedo buscar productos del catálogo o consultar el estado de tu pedido."
	msgNoResults  = "No encontré productos que coincidan con tu búsqueda. ¿Puedes describirlo de otra forma?"
	msgAskOrder   = "Claro, ¿me indicas tu número de pedido para consultar el estado?"
	msgOrderMiss  = "No encontré un pedido con ese número. Verifica el número e inténtalo de nuevo, por favor."
	msgOrdersDown = "En este momento no puedo consultar el estado de los pedidos. Inténtalo de nuevo en unos minutos, por favor."
)

// systemPrompt grounds the model: it may only use the supplied catalog
// excerpt and must refuse with the exact phrase when the excerpt does not
// answer the question. The phrase is what the non-answer classifier keys on.
const systemPrompt = `Eres el asistente de ventas de una tienda en línea. ` +
	`Responde SOLO con la información del catálogo que se te proporciona en el mensaje. ` +
	`No inventes productos, precios ni existencias. ` +
	`Si el catálogo proporcionado no contiene la respuesta, responde exactamente: ` +
	`"lo siento, no dispongo de esa información". ` +
	`Responde en español, de forma breve y amable.`

const userPromptTemplate = `Catálogo (JSON):
%s

Pregunta del cliente: %s`

// Answerer assembles the final chat reply from retrieval results, the
// language model, and the orders reader. The model and orders reader are
// optional; the answerer degrades to deterministic replies without them.
type Answerer struct {
	retriever      *Retriever
	chat           llm.Chat
	ordersReader   *orders.Reader
	refusalPhrases []string
}

// NewAnswerer creates an answer assembler. chat and ordersReader may be nil.
func NewAnswerer(retriever *Retriever, chat llm.Chat, ordersReader *orders.Reader, refusalPhrases []string) *Answerer {
	return &Answerer{
		retriever:      retriever,
		chat:           chat,
		ordersReader:   ordersReader,
		refusalPhrases: refusalPhrases,
	}
}

// Answer handles one chat message end to end.
func (a *Answerer) Answer(ctx context.Context, message string) (*model.ChatAnswer, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return &model.ChatAnswer{Answer: msgEmptyQuery}, nil
	}

	if a.ordersReader != nil && orders.LooksLikeOrderIntent(message) {
		return a.answerOrder(ctx, message), nil
	}

	retrieval, err := a.retriever.Retrieve(ctx, message)
	if err != nil {
		return nil, err
	}

	if len(retrieval.Cards) == 0 {
		return &model.ChatAnswer{Answer: msgNoResults}, nil
	}

	answer := a.phrase(ctx, message, retrieval)
	return &model.ChatAnswer{Answer: answer, Products: retrieval.Cards}, nil
}

// answerOrder resolves an order-status question against the published report.
func (a *Answerer) answerOrder(ctx context.Context, message string) *model.ChatAnswer {
	number := orders.DetectOrderNumber(message)
	if number == "" {
		return &model.ChatAnswer{Answer: msgAskOrder}
	}

	row, err := a.ordersReader.Lookup(ctx, number)
	if err != nil {
		log.Printf("[Answerer] Order lookup failed: %v", err)
		return &model.ChatAnswer{Answer: msgOrdersDown}
	}
	if row == nil {
		return &model.ChatAnswer{Answer: msgOrderMiss}
	}

	return &model.ChatAnswer{
		Answer: "Esto es lo que encontré sobre tu pedido:\n\n" + orders.RenderVertical(row),
	}
}

// phrase asks the model to word the answer over the retrieved context, and
// falls back to a deterministic product list when the model is unavailable,
// errors, replies empty, or refuses.
func (a *Answerer) phrase(ctx context.Context, message string, retrieval *Retrieval) string {
	if a.chat == nil {
		return a.fallback(retrieval)
	}

	user := fmt.Sprintf(userPromptTemplate, CompactContext(retrieval.Context), message)
	res := a.chat.Complete(ctx, systemPrompt, user)
	if llm.IsNonAnswer(res, a.refusalPhrases) {
		if res.Err != nil {
			log.Printf("[Answerer] Model call failed, using fallback: %v", res.Err)
		}
		return a.fallback(retrieval)
	}
	return strings.TrimSpace(res.Text)
}

// fallback builds the deterministic reply: every retrieved product with its
// price and link, as a bulleted list.
func (a *Answerer) fallback(retrieval *Retrieval) string {
	var b strings.Builder
	b.WriteString("Esto es lo que encontré en nuestro catálogo:\n")
	for _, card := range retrieval.Cards {
		fmt.Fprintf(&b, "\n- **%s**: %s", card.Title, card.Price)
		if card.CompareAtPrice != "" {
			fmt.Fprintf(&b, " (antes %s)", card.CompareAtPrice)
		}
		fmt.Fprintf(&b, " %s", card.ProductURL)
	}
	return b.String()
}
