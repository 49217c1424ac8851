package shopify

// Admin GraphQL documents. Selection sets are kept to the fields the adapter
// maps back into platform types.

const pageInfoFields = `
      pageInfo { hasNextPage endCursor }`

const variantNodeFields = `
      id
      selectedOptions { name value }
      inventoryItem { id tracked }`

const mutationProductCreate = `
mutation productCreate($product: ProductCreateInput!) {
  productCreate(product: $product) {
    product {
      id
      variants(first: 250) { nodes {` + variantNodeFields + ` } }
    }
    userErrors { field message }
  }
}`

const mutationProductUpdate = `
mutation productUpdate($product: ProductUpdateInput!) {
  productUpdate(product: $product) {
    product { id }
    userErrors { field message }
  }
}`

const mutationProductUpdateMedia = `
mutation productUpdateMedia($product: ProductUpdateInput!, $media: [CreateMediaInput!]) {
  productUpdate(product: $product, media: $media) {
    product { id }
    userErrors { field message }
  }
}`

const queryProductByHandle = `
query productByHandle($query: String!) {
  products(first: 1, query: $query) {
    nodes { id handle }
  }
}`

const mutationProductSet = `
mutation productSet($input: ProductSetInput!) {
  productSet(input: $input, synchronous: true) {
    product { id }
    userErrors { field message code }
  }
}`

const queryProductSEO = `
query productSEO($id: ID!) {
  product(id: $id) {
    seo { description }
    metafield(namespace: "global", key: "description_tag") { value }
  }
}`

const queryProductOptions = `
query productOptions($id: ID!) {
  product(id: $id) {
    options {
      id
      name
      position
      optionValues { id name }
    }
  }
}`

const mutationOptionsCreate = `
mutation productOptionsCreate($productId: ID!, $options: [OptionCreateInput!]!, $variantStrategy: ProductOptionCreateVariantStrategy) {
  productOptionsCreate(productId: $productId, options: $options, variantStrategy: $variantStrategy) {
    product { id }
    userErrors { field message code }
  }
}`

const mutationOptionUpdate = `
mutation productOptionUpdate($productId: ID!, $option: OptionUpdateInput!, $optionValuesToAdd: [OptionValueCreateInput!], $optionValuesToDelete: [ID!], $variantStrategy: ProductOptionUpdateVariantStrategy) {
  productOptionUpdate(productId: $productId, option: $option, optionValuesToAdd: $optionValuesToAdd, optionValuesToDelete: $optionValuesToDelete, variantStrategy: $variantStrategy) {
    product { id }
    userErrors { field message code }
  }
}`

const mutationOptionsDelete = `
mutation productOptionsDelete($productId: ID!, $options: [ID!]!, $strategy: ProductOptionDeleteStrategy) {
  productOptionsDelete(productId: $productId, options: $options, strategy: $strategy) {
    deletedOptionsIds
    userErrors { field message code }
  }
}`

const mutationOptionsReorder = `
mutation productOptionsReorder($productId: ID!, $options: [OptionReorderInput!]!) {
  productOptionsReorder(productId: $productId, options: $options) {
    product { id }
    userErrors { field message code }
  }
}`

const queryProductVariants = `
query productVariants($id: ID!, $cursor: String) {
  product(id: $id) {
    variants(first: 250, after: $cursor) {
      nodes {` + variantNodeFields + ` }` + pageInfoFields + `
    }
  }
}`

const mutationVariantsBulkCreate = `
mutation productVariantsBulkCreate($productId: ID!, $variants: [ProductVariantsBulkInput!]!, $strategy: ProductVariantsBulkCreateStrategy) {
  productVariantsBulkCreate(productId: $productId, variants: $variants, strategy: $strategy) {
    productVariants {` + variantNodeFields + ` }
    userErrors { field message code }
  }
}`

const mutationVariantsBulkUpdate = `
mutation productVariantsBulkUpdate($productId: ID!, $variants: [ProductVariantsBulkInput!]!) {
  productVariantsBulkUpdate(productId: $productId, variants: $variants) {
    product { id }
    userErrors { field message code }
  }
}`

const mutationVariantDelete = `
mutation productVariantDelete($id: ID!) {
  productVariantDelete(id: $id) {
    deletedProductVariantId
    userErrors { field message }
  }
}`

const queryProductMedia = `
query productMedia($id: ID!, $cursor: String) {
  product(id: $id) {
    media(first: 250, after: $cursor) {
      nodes {
        id
        alt
        mediaContentType
        ... on MediaImage { image { url } }
      }` + pageInfoFields + `
    }
  }
}`

const mutationDeleteMedia = `
mutation productDeleteMedia($productId: ID!, $mediaIds: [ID!]!) {
  productDeleteMedia(productId: $productId, mediaIds: $mediaIds) {
    deletedMediaIds
    mediaUserErrors { field message code }
  }
}`

const queryInventoryItem = `
query variantInventory($id: ID!, $cursor: String) {
  productVariant(id: $id) {
    id
    inventoryItem {
      id
      tracked
      inventoryLevels(first: 50, after: $cursor) {
        nodes { location { id } }` + pageInfoFields + `
      }
    }
  }
}`

const mutationInventorySetQuantities = `
mutation inventorySetQuantities($input: InventorySetQuantitiesInput!) {
  inventorySetQuantities(input: $input) {
    inventoryAdjustmentGroup { id }
    userErrors { field message code }
  }
}`

const mutationInventoryItemUpdate = `
mutation inventoryItemUpdate($id: ID!, $input: InventoryItemInput!) {
  inventoryItemUpdate(id: $id, input: $input) {
    inventoryItem { id tracked }
    userErrors { field message }
  }
}`

const queryPublications = `
query publications($cursor: String) {
  publications(first: 50, after: $cursor) {
    nodes { id }` + pageInfoFields + `
  }
}`

const mutationPublish = `
mutation publishablePublish($id: ID!, $input: [PublicationInput!]!) {
  publishablePublish(id: $id, input: $input) {
    userErrors { field message }
  }
}`

const mutationCollectionAddProducts = `
mutation collectionAddProducts($id: ID!, $productIds: [ID!]!) {
  collectionAddProducts(id: $id, productIds: $productIds) {
    collection { id }
    userErrors { field message }
  }
}`

const mutationMetafieldsSet = `
mutation metafieldsSet($metafields: [MetafieldsSetInput!]!) {
  metafieldsSet(metafields: $metafields) {
    metafields { id }
    userErrors { field message code }
  }
}`
