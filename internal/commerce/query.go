package commerce

const productFields = `
id
title
description
handle
totalInventory
priceRange {
  minVariantPrice { amount currencyCode }
  maxVariantPrice { amount currencyCode }
}
images(first: 10) { edges { node { url altText } } }
variants(first: 100) {
  edges {
    node {
      id
      title
      price { amount currencyCode }
      availableForSale
      quantityAvailable
      selectedOptions { name value }
    }
  }
}
`

const queryGetProducts = `
query getProducts($count: Int!) {
  products(first: $count) {
    edges { node {` + productFields + `} }
  }
}
`

const queryGetProductById = `
query getProductById($id: ID!) {
  product(id: $id) {` + productFields + `}
}
`

const mutationCartCreate = `
mutation cartCreate($input: CartInput!) {
  cartCreate(input: $input) {
    cart { id checkoutUrl }
    userErrors { field message }
  }
}
`

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type graphqlResponse[T any] struct {
	Data   T              `json:"data"`
	Errors []graphqlError `json:"errors"`
}

type edges[T any] struct {
	Edges []struct {
		Node T `json:"node"`
	} `json:"edges"`
}

func (e edges[T]) nodes() []T {
	nodes := make([]T, 0, len(e.Edges))
	for _, edge := range e.Edges {
		nodes = append(nodes, edge.Node)
	}
	return nodes
}

type productNode struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Handle         string         `json:"handle"`
	TotalInventory *int           `json:"totalInventory"`
	PriceRange     PriceRange     `json:"priceRange"`
	Images         edges[Image]   `json:"images"`
	Variants       edges[Variant] `json:"variants"`
}

func (n productNode) product() Product {
	return Product{
		ID:             n.ID,
		Title:          n.Title,
		Description:    n.Description,
		Handle:         n.Handle,
		TotalInventory: n.TotalInventory,
		PriceRange:     n.PriceRange,
		Images:         n.Images.nodes(),
		Variants:       n.Variants.nodes(),
	}
}

type getProductsData struct {
	Products edges[productNode] `json:"products"`
}

type getProductByIdData struct {
	Product *productNode `json:"product"`
}

type cartCreateData struct {
	CartCreate struct {
		Cart *struct {
			ID          string `json:"id"`
			CheckoutURL string `json:"checkoutUrl"`
		} `json:"cart"`
		UserErrors []UserError `json:"userErrors"`
	} `json:"cartCreate"`
}
